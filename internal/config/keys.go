package config

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/Arceliar/hopper/cryptde"
)

// LoadKey reads the hex encoded ed25519 private key in path.
func LoadKey(path string) (*cryptde.Ed25519, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.In("config").With("key_file", path).Wrapf(err, "failed to read key file")
	}
	secret, err := hex.DecodeString(strings.TrimSpace(string(bs)))
	if err != nil {
		return nil, oops.In("config").With("key_file", path).Wrapf(err, "key file is not hex")
	}
	cde, err := cryptde.NewEd25519(ed25519.PrivateKey(secret))
	if err != nil {
		return nil, oops.In("config").With("key_file", path).Wrapf(err, "bad key in key file")
	}
	return cde, nil
}

// GenerateKey writes a fresh key to path, refusing to replace an existing file.
func GenerateKey(path string) (*cryptde.Ed25519, error) {
	cde, err := cryptde.NewEd25519(nil)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, oops.In("config").With("key_file", path).Wrapf(err, "failed to create key directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, oops.In("config").With("key_file", path).Wrapf(err, "failed to create key file")
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(cde.PrivateKey()) + "\n"); err != nil {
		return nil, oops.In("config").With("key_file", path).Wrapf(err, "failed to write key file")
	}
	return cde, nil
}
