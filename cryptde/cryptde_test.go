package cryptde

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEd25519(t testing.TB) *Ed25519 {
	c, err := NewEd25519(nil)
	require.NoError(t, err)
	return c
}

func TestNullRoundTrip(t *testing.T) {
	c := NewNull()
	msg := []byte("this is a test")
	ct, err := c.Encrypt(c.PublicKey(), msg)
	require.NoError(t, err)
	pt, err := c.Decrypt(c.PrivateKey(), ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestNullWrongKey(t *testing.T) {
	a := NewNullRandom()
	b := NewNullRandom()
	ct, err := a.Encrypt(a.PublicKey(), []byte("for a only"))
	require.NoError(t, err)
	_, err = b.Decrypt(b.PrivateKey(), ct)
	require.True(t, errors.As(err, new(WrongKeyError)))
	_, err = a.Decrypt(a.PrivateKey(), []byte{1})
	require.True(t, errors.As(err, new(WrongKeyError)))
}

func TestNullEmptyKey(t *testing.T) {
	c := NewNull()
	_, err := c.Encrypt(nil, []byte("x"))
	require.ErrorIs(t, err, EmptyKeyError{})
	_, err = c.Decrypt(nil, []byte("x"))
	require.ErrorIs(t, err, EmptyKeyError{})
}

func TestNullSignVerify(t *testing.T) {
	a := NewNullRandom()
	b := NewNullRandom()
	msg := []byte("this is a test")
	sig := a.Sign(msg)
	require.True(t, b.Verify(a.PublicKey(), msg, sig))
	require.False(t, b.Verify(b.PublicKey(), msg, sig))
	require.False(t, b.Verify(a.PublicKey(), []byte("other"), sig))
}

func TestNullPrivateKeyIsReversal(t *testing.T) {
	c := NewNullWithKey(PublicKey{1, 2, 3})
	require.Equal(t, PrivateKey{3, 2, 1}, c.PrivateKey())
	require.Equal(t, NullPrivateKey(PublicKey{1, 2, 3}), c.PrivateKey())
}

func TestEd25519RoundTrip(t *testing.T) {
	c := newTestEd25519(t)
	msg := []byte("this is a test")
	ct, err := c.Encrypt(c.PublicKey(), msg)
	require.NoError(t, err)
	pt, err := c.Decrypt(c.PrivateKey(), ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestEd25519NonDeterministic(t *testing.T) {
	c := newTestEd25519(t)
	msg := []byte("this is a test")
	ct1, err := c.Encrypt(c.PublicKey(), msg)
	require.NoError(t, err)
	ct2, err := c.Encrypt(c.PublicKey(), msg)
	require.NoError(t, err)
	require.NotEqual(t, ct1, ct2)
}

func TestEd25519WrongKey(t *testing.T) {
	a := newTestEd25519(t)
	b := newTestEd25519(t)
	ct, err := a.Encrypt(a.PublicKey(), []byte("for a only"))
	require.NoError(t, err)
	_, err = b.Decrypt(b.PrivateKey(), ct)
	require.ErrorIs(t, err, WrongKeyError{})
	_, err = a.Decrypt(a.PrivateKey(), ct[:10])
	require.ErrorIs(t, err, MalformedCiphertextError{})
	ct[len(ct)-1] ^= 0xff
	_, err = a.Decrypt(a.PrivateKey(), ct)
	require.ErrorIs(t, err, WrongKeyError{})
}

func TestEd25519BadKey(t *testing.T) {
	c := newTestEd25519(t)
	_, err := c.Encrypt(PublicKey{1, 2, 3}, []byte("x"))
	require.ErrorIs(t, err, BadKeyError{})
	_, err = NewEd25519(ed25519.PrivateKey{1, 2, 3})
	require.ErrorIs(t, err, BadKeyError{})
}

func TestEdX25519(t *testing.T) {
	bsPub, bsPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var ePub edPub
	var ePriv edPriv
	copy(ePub[:], bsPub)
	copy(ePriv[:], bsPriv)
	pub1, err := ePub.toBox()
	require.NoError(t, err)
	pub2, err := ePriv.toBox().public()
	require.NoError(t, err)
	require.Equal(t, *pub1, *pub2)
}

func TestEd25519SignVerify(t *testing.T) {
	a := newTestEd25519(t)
	b := newTestEd25519(t)
	msg := []byte("this is a test")
	sig := a.Sign(msg)
	require.True(t, b.Verify(a.PublicKey(), msg, sig))
	require.False(t, b.Verify(b.PublicKey(), msg, sig))
	require.False(t, b.Verify(a.PublicKey(), msg, sig[:10]))
}

func BenchmarkEd25519Encrypt(b *testing.B) {
	c := newTestEd25519(b)
	msg := []byte("this is a test")
	key := c.PublicKey()
	for idx := 0; idx < b.N; idx++ {
		_, _ = c.Encrypt(key, msg)
	}
}

func BenchmarkEd25519Decrypt(b *testing.B) {
	c := newTestEd25519(b)
	ct, _ := c.Encrypt(c.PublicKey(), []byte("this is a test"))
	key := c.PrivateKey()
	for idx := 0; idx < b.N; idx++ {
		if _, err := c.Decrypt(key, ct); err != nil {
			panic("decryption failed")
		}
	}
}
