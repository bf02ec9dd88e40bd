package cryptde

import (
	"crypto/ed25519"
)

// Ed25519 is the production CryptDE.
// The node identity is an ed25519 key pair; payloads are sealed to the
// recipient's key converted to X25519, using a fresh ephemeral key per call.
type Ed25519 struct {
	publicKey  PublicKey
	privateKey PrivateKey
}

// NewEd25519 binds a CryptDE to secret. A nil secret generates a new identity.
func NewEd25519(secret ed25519.PrivateKey) (*Ed25519, error) {
	if secret == nil {
		var err error
		if _, secret, err = ed25519.GenerateKey(nil); err != nil {
			return nil, err
		}
	}
	if len(secret) != edPrivSize {
		return nil, BadKeyError{}
	}
	pub := secret.Public().(ed25519.PublicKey)
	return &Ed25519{
		publicKey:  append(PublicKey(nil), pub...),
		privateKey: append(PrivateKey(nil), secret...),
	}, nil
}

func (c *Ed25519) Encrypt(key PublicKey, plaintext []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, EmptyKeyError{}
	}
	if len(key) != edPubSize {
		return nil, BadKeyError{}
	}
	var pub edPub
	copy(pub[:], key)
	bpub, err := pub.toBox()
	if err != nil {
		return nil, BadKeyError{}
	}
	return boxSealAnonymous(make([]byte, 0, len(plaintext)+boxOverhead), plaintext, bpub)
}

func (c *Ed25519) Decrypt(key PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, EmptyKeyError{}
	}
	if len(key) != edPrivSize {
		return nil, WrongKeyError{}
	}
	if len(ciphertext) < boxOverhead {
		return nil, MalformedCiphertextError{}
	}
	var priv edPriv
	copy(priv[:], key)
	bpriv := priv.toBox()
	bpub, err := bpriv.public()
	if err != nil {
		return nil, WrongKeyError{}
	}
	out, ok := boxOpenAnonymous(make([]byte, 0, len(ciphertext)-boxOverhead), ciphertext, bpub, bpriv)
	if !ok {
		return nil, WrongKeyError{}
	}
	return out, nil
}

func (c *Ed25519) Sign(message []byte) Signature {
	return Signature(ed25519.Sign(ed25519.PrivateKey(c.privateKey), message))
}

func (c *Ed25519) Verify(key PublicKey, message []byte, sig Signature) bool {
	if len(key) != edPubSize || len(sig) != edSigSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), message, sig)
}

func (c *Ed25519) PublicKey() PublicKey {
	return c.publicKey.Clone()
}

func (c *Ed25519) PrivateKey() PrivateKey {
	return append(PrivateKey(nil), c.privateKey...)
}
