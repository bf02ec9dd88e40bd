package types

import (
	"encoding/hex"
	"net"
)

// ConvertibleAddr is for apps that want to implement a custom address behaviour
// but want to tell the relay which public key to contact.
type ConvertibleAddr interface {
	HopperAddr() Addr
}

func ExtractAddrKey(a net.Addr) (addr Addr, ok bool) {
	var destKey Addr
	switch v := a.(type) {
	case Addr:
		destKey = v
	case ConvertibleAddr:
		destKey = v.HopperAddr()
	default:
		return nil, false
	}
	if len(destKey) == 0 {
		return nil, false
	}
	return destKey, true
}

// Addr implements the `net.Addr` interface for CryptDE public keys.
// Keys are opaque, so no length is enforced here.
type Addr []byte

// Network returns "cryptde.PublicKey" as a string, but is otherwise unused.
func (a Addr) Network() string {
	return "cryptde.PublicKey"
}

// String returns the public key as a hexidecimal string, but is otherwise unused.
func (a Addr) String() string {
	return hex.EncodeToString(a)
}
