package directory

import (
	"github.com/samber/oops"
	bolt "go.etcd.io/bbolt"

	"github.com/Arceliar/hopper/cryptde"
)

const (
	peersBucket    = "peers"
	metadataBucket = "metadata"
	versionKey     = "version"
)

// Bolt is a Directory persisted in a bbolt database file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt creates (or loads) the directory stored in the file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, oops.In("directory").With("path", path).Wrapf(err, "failed to open directory database")
	}
	if err = db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(metadataBucket))
		if err != nil {
			return err
		}
		if _, err = tx.CreateBucketIfNotExists([]byte(peersBucket)); err != nil {
			return err
		}
		if b := bkt.Get([]byte(versionKey)); b != nil {
			if len(b) != 1 || b[0] != 0 {
				return oops.Errorf("incompatible directory version: %v", b)
			}
			return nil
		}
		return bkt.Put([]byte(versionKey), []byte{0})
	}); err != nil {
		db.Close()
		return nil, oops.In("directory").With("path", path).Wrapf(err, "failed to initialize directory database")
	}
	return &Bolt{db: db}, nil
}

func (d *Bolt) Lookup(key cryptde.PublicKey) (string, error) {
	var addr string
	if err := d.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(peersBucket)).Get(key); v != nil {
			addr = string(v)
		}
		return nil
	}); err != nil {
		return "", oops.In("directory").Wrapf(err, "lookup failed")
	}
	if addr == "" {
		return "", NotFoundError{Key: key.Clone()}
	}
	return addr, nil
}

func (d *Bolt) Put(key cryptde.PublicKey, addr string) error {
	if err := checkEntry(key, addr); err != nil {
		return err
	}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(peersBucket)).Put(key, []byte(addr))
	}); err != nil {
		return oops.In("directory").With("key", key.String()).Wrapf(err, "put failed")
	}
	return nil
}

// Delete forgets key. Deleting an absent key is not an error.
func (d *Bolt) Delete(key cryptde.PublicKey) error {
	if err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(peersBucket)).Delete(key)
	}); err != nil {
		return oops.In("directory").With("key", key.String()).Wrapf(err, "delete failed")
	}
	return nil
}

// Close syncs and closes the underlying database.
func (d *Bolt) Close() error {
	if err := d.db.Sync(); err != nil {
		d.db.Close()
		return oops.In("directory").Wrapf(err, "sync failed")
	}
	return d.db.Close()
}
