package cryptde

import (
	"crypto/ed25519"
	"crypto/sha512"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

/******
 * ed *
 ******/

const (
	edPubSize  = ed25519.PublicKeySize
	edPrivSize = ed25519.PrivateKeySize
	edSigSize  = ed25519.SignatureSize
)

type edPub [edPubSize]byte
type edPriv [edPrivSize]byte

func (pub *edPub) toBox() (*boxPub, error) {
	p, err := new(edwards25519.Point).SetBytes(pub[:])
	if err != nil {
		return nil, err
	}
	var b boxPub
	copy(b[:], p.BytesMontgomery())
	return &b, nil
}

func (priv *edPriv) toBox() *boxPriv {
	seed := ed25519.PrivateKey(priv[:]).Seed()
	h := sha512.Sum512(seed)
	var b boxPriv
	copy(b[:], h[:boxPrivSize])
	b[0] &= 248
	b[31] &= 127
	b[31] |= 64
	return &b
}

/*******
 * box *
 *******/

const (
	boxPubSize  = 32
	boxPrivSize = 32
	boxOverhead = box.AnonymousOverhead
)

type boxPub [boxPubSize]byte
type boxPriv [boxPrivSize]byte

func (priv *boxPriv) public() (*boxPub, error) {
	bs, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	var pub boxPub
	copy(pub[:], bs)
	return &pub, nil
}

func boxSealAnonymous(out, msg []byte, pub *boxPub) ([]byte, error) {
	return box.SealAnonymous(out, msg, (*[32]byte)(pub), nil)
}

func boxOpenAnonymous(out, boxed []byte, pub *boxPub, priv *boxPriv) ([]byte, bool) {
	return box.OpenAnonymous(out, boxed, (*[32]byte)(pub), (*[32]byte)(priv))
}
