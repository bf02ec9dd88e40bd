package types

import "net"

type Relay interface {
	// HandleConn expects a peer's public key (or nil if it is not known yet) as its first argument, and a net.Conn with TCP-like semantics (reliable ordered delivery) as its second argument.
	// This function blocks while the net.Conn is in use, and returns an error if any occurs.
	// This function returns (almost) immediately if Relay.Close() is called.
	// In all cases, the net.Conn is closed before returning.
	HandleConn(key []byte, conn net.Conn) error
	// LocalAddr returns an Addr holding this relay's public key.
	LocalAddr() net.Addr
	// Close shuts down the relay and every connection it is handling.
	Close() error
}
