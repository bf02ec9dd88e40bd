package cryptde

import (
	"bytes"
	"crypto/rand"

	"golang.org/x/crypto/blake2b"
)

var defaultNullPublicKey = PublicKey("CRYPTDENULL_PUBLIC_KEY")

// Null is a reversible, insecure CryptDE for deterministic tests.
// The private key is the byte reversal of the public key and ciphertext is
// the recipient's public key followed by the plaintext. Decrypting with any
// other key still fails, so protocol tests stay meaningful.
type Null struct {
	publicKey  PublicKey
	privateKey PrivateKey
}

func NewNull() *Null {
	return NewNullWithKey(defaultNullPublicKey)
}

func NewNullWithKey(key PublicKey) *Null {
	return &Null{
		publicKey:  key.Clone(),
		privateKey: NullPrivateKey(key),
	}
}

// NewNullRandom returns a Null bound to a random 32 byte public key.
func NewNullRandom() *Null {
	key := make(PublicKey, 32)
	if _, err := rand.Read(key); err != nil {
		panic("failed to generate key")
	}
	return NewNullWithKey(key)
}

// NullPrivateKey returns the private key Null pairs with a public key.
func NullPrivateKey(key PublicKey) PrivateKey {
	return PrivateKey(reverseBytes(key))
}

func (n *Null) Encrypt(key PublicKey, plaintext []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, EmptyKeyError{}
	}
	out := make([]byte, 0, len(key)+len(plaintext))
	out = append(out, key...)
	return append(out, plaintext...), nil
}

func (n *Null) Decrypt(key PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, EmptyKeyError{}
	}
	pub := reverseBytes(key)
	if len(ciphertext) < len(pub) {
		return nil, WrongKeyError{}
	}
	if !bytes.Equal(ciphertext[:len(pub)], pub) {
		return nil, WrongKeyError{}
	}
	return append([]byte(nil), ciphertext[len(pub):]...), nil
}

func (n *Null) Sign(message []byte) Signature {
	return nullSignature(n.publicKey, message)
}

func (n *Null) Verify(key PublicKey, message []byte, sig Signature) bool {
	return bytes.Equal(nullSignature(key, message), sig)
}

func (n *Null) PublicKey() PublicKey {
	return n.publicKey.Clone()
}

func (n *Null) PrivateKey() PrivateKey {
	return append(PrivateKey(nil), n.privateKey...)
}

func nullSignature(key PublicKey, message []byte) Signature {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("blake2b: " + err.Error())
	}
	_, _ = h.Write(key)
	_, _ = h.Write(message)
	return h.Sum(nil)
}

func reverseBytes(bs []byte) []byte {
	out := make([]byte, len(bs))
	for idx, b := range bs {
		out[len(bs)-1-idx] = b
	}
	return out
}
