// Package cryptde defines the cryptographic capability a relay node is bound to.
//
// A CryptDE holds exactly one local key pair for the lifetime of the process.
// It is immutable after construction, so a single value is safely shared by
// every connection actor without locking.
package cryptde

import (
	"bytes"
	"encoding/hex"

	"github.com/Arceliar/hopper/types"
)

type PublicKey []byte
type PrivateKey []byte
type Signature []byte

// CryptDE is the node's asymmetric crypto capability.
//
// Decrypt must fail with a WrongKeyError when the ciphertext was not produced
// for the supplied key; it must never return garbage that callers accept.
type CryptDE interface {
	Encrypt(key PublicKey, plaintext []byte) ([]byte, error)
	Decrypt(key PrivateKey, ciphertext []byte) ([]byte, error)
	Sign(message []byte) Signature
	Verify(key PublicKey, message []byte, sig Signature) bool
	PublicKey() PublicKey
	PrivateKey() PrivateKey
}

func (key PublicKey) Equal(comparedKey PublicKey) bool {
	return bytes.Equal(key, comparedKey)
}

func (key PublicKey) String() string {
	return hex.EncodeToString(key)
}

// Addr returns the key as a net.Addr usable with types.Relay.
func (key PublicKey) Addr() types.Addr {
	return types.Addr(append([]byte(nil), key...))
}

func (key PublicKey) Clone() PublicKey {
	if key == nil {
		return nil
	}
	return append(PublicKey(nil), key...)
}

func (key PrivateKey) Equal(comparedKey PrivateKey) bool {
	return bytes.Equal(key, comparedKey)
}

// String never reveals key material.
func (key PrivateKey) String() string {
	return "PrivateKey(redacted)"
}
