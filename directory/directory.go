// Package directory maps CryptDE public keys to the network addresses where
// their owners accept connections.
package directory

import (
	"sync"

	"github.com/Arceliar/hopper/cryptde"
)

type Directory interface {
	// Lookup returns the "host:port" address recorded for key, or a NotFoundError.
	Lookup(key cryptde.PublicKey) (string, error)
	// Put records (or replaces) the address for key.
	Put(key cryptde.PublicKey, addr string) error
}

type NotFoundError struct {
	Key cryptde.PublicKey
}

func (e NotFoundError) Error() string {
	return "NotFoundError: " + e.Key.String()
}

type BadEntryError struct{}

func (e BadEntryError) Error() string {
	return "BadEntryError"
}

func checkEntry(key cryptde.PublicKey, addr string) error {
	if len(key) == 0 || addr == "" {
		return BadEntryError{}
	}
	return nil
}

// Memory is a Directory kept in process memory.
type Memory struct {
	mutex sync.RWMutex
	addrs map[string]string
}

func NewMemory() *Memory {
	return &Memory{addrs: make(map[string]string)}
}

func (m *Memory) Lookup(key cryptde.PublicKey) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	addr, isIn := m.addrs[string(key)]
	if !isIn {
		return "", NotFoundError{Key: key.Clone()}
	}
	return addr, nil
}

func (m *Memory) Put(key cryptde.PublicKey, addr string) error {
	if err := checkEntry(key, addr); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.addrs[string(key)] = addr
	return nil
}

// Len returns the number of recorded keys.
func (m *Memory) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.addrs)
}
