package directory

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arceliar/hopper/cryptde"
)

func testDirectory(t *testing.T, d Directory) {
	key := cryptde.PublicKey("some key")
	_, err := d.Lookup(key)
	var nf NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.True(t, nf.Key.Equal(key))

	require.NoError(t, d.Put(key, "127.0.0.1:5333"))
	addr, err := d.Lookup(key)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5333", addr)

	require.NoError(t, d.Put(key, "127.0.0.1:5334"))
	addr, err = d.Lookup(key)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5334", addr)

	assert.ErrorIs(t, d.Put(nil, "127.0.0.1:1"), BadEntryError{})
	assert.ErrorIs(t, d.Put(key, ""), BadEntryError{})
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	testDirectory(t, m)
	assert.Equal(t, 1, m.Len())
}

func TestBolt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.db")
	d, err := OpenBolt(path)
	require.NoError(t, err)
	testDirectory(t, d)
	require.NoError(t, d.Close())

	// Entries survive a reopen.
	d, err = OpenBolt(path)
	require.NoError(t, err)
	defer d.Close()
	addr, err := d.Lookup(cryptde.PublicKey("some key"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5334", addr)

	require.NoError(t, d.Delete(cryptde.PublicKey("some key")))
	_, err = d.Lookup(cryptde.PublicKey("some key"))
	assert.ErrorAs(t, err, &NotFoundError{})
}

func TestOpenBoltBadPath(t *testing.T) {
	_, err := OpenBolt(filepath.Join(t.TempDir(), "missing", "peers.db"))
	require.Error(t, err)
}
