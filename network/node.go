package network

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/Arceliar/phony"
	"github.com/samber/oops"
	"golang.org/x/net/netutil"

	"github.com/Arceliar/hopper/cores"
	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/route"
	"github.com/Arceliar/hopper/types"
)

func _type_asserts_() {
	var _ types.Relay = new(Node)
}

// Node relays CORES packages: it peels one hop of every package it receives,
// forwards what is meant for other nodes and delivers the rest locally.
type Node struct {
	actor        phony.Inbox
	core         *core
	Debug        Debug
	recv         chan *cores.ExpiredCoresPackage // read buffer
	handlers     map[types.Component]func(*cores.ExpiredCoresPackage)
	readDeadline *deadline
	closeMutex   sync.Mutex
	closed       chan struct{}
	listeners    []net.Listener
}

// NewNode returns a *Node using cde for its keys, which implements the types.Relay interface.
func NewNode(cde cryptde.CryptDE, opts ...Option) (*Node, error) {
	c := new(core)
	if err := c.init(cde, opts...); err != nil {
		return nil, err
	}
	return &c.node, nil
}

func (n *Node) init(c *core) {
	n.core = c
	n.Debug.init(c)
	n.recv = make(chan *cores.ExpiredCoresPackage, 1)
	n.handlers = make(map[types.Component]func(*cores.ExpiredCoresPackage))
	n.readDeadline = newDeadline()
	n.closed = make(chan struct{})
}

// PublicKey returns the key other nodes use to address this one.
func (n *Node) PublicKey() cryptde.PublicKey {
	return n.core.crypto.PublicKey().Clone()
}

// LocalAddr returns a types.Addr of the public key for this Node.
func (n *Node) LocalAddr() net.Addr {
	return n.core.crypto.PublicKey().Addr()
}

// HandleConn expects a peer's public key (or nil if it is not known) as its first argument, and a net.Conn with TCP-like semantics as its second argument.
// Packages for the peer's key are only sent over connections where the key was given.
// This function blocks while the net.Conn is in use, and returns an error if any occurs.
// This function returns (almost) immediately if Node.Close() is called.
// In all cases, the net.Conn is closed before returning.
func (n *Node) HandleConn(key []byte, conn net.Conn) error {
	defer conn.Close()
	pk := cryptde.PublicKey(key).Clone()
	if len(pk) > 0 && n.core.crypto.PublicKey().Equal(pk) {
		return SelfConnectionError{}
	}
	p, err := n.core.peers.addPeer(pk, conn)
	if err != nil {
		if len(pk) > 0 {
			n.core.peers.failPending(pk, err)
		}
		return err
	}
	err = p.handler()
	if e := n.core.peers.removePeer(p.port); e != nil {
		return e
	}
	return err
}

// Listen accepts connections on the TCP address addr and handles each of them as an anonymous peer.
// The listener is closed when ctx is done or the Node is closed.
func (n *Node) Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, oops.In("network").With("addr", addr).Wrapf(err, "failed to listen")
	}
	if conns := n.core.config.maxConns; conns > 0 {
		l = netutil.LimitListener(l, conns)
	}
	n.closeMutex.Lock()
	defer n.closeMutex.Unlock()
	if n.IsClosed() {
		l.Close()
		return nil, ClosedError{}
	}
	n.listeners = append(n.listeners, l)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-n.closed:
		}
	}()
	go n.serve(l)
	n.core.log.WithField("addr", l.Addr().String()).Info("Listening")
	return l, nil
}

func (n *Node) serve(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			if !n.IsClosed() {
				n.core.log.WithField("addr", l.Addr().String()).WithError(err).Debug("Stopped accepting")
			}
			return
		}
		go func() {
			if err := n.HandleConn(nil, conn); err != nil {
				n.core.log.WithError(err).Debug("Inbound link closed")
			}
		}()
	}
}

// Send starts a package on its way from this node, which must own the route's first hop.
func (n *Node) Send(p *cores.IncipientCoresPackage) error {
	if n.IsClosed() {
		return ClosedError{}
	}
	live, err := p.Live()
	if err != nil {
		return err
	}
	self := n.core.crypto.PublicKey().Addr()
	err = n.core.process(nil, 0, self, live)
	if errors.As(err, new(route.CannotDecryptError)) {
		return NotOriginatorError{Err: err}
	}
	return err
}

// Transmit sends a package to firstHop without peeling any hop here.
func (n *Node) Transmit(p *cores.IncipientCoresPackage, firstHop cryptde.PublicKey) error {
	if n.IsClosed() {
		return ClosedError{}
	}
	if len(firstHop) == 0 {
		return BadKeyError{}
	}
	live, err := p.Live()
	if err != nil {
		return err
	}
	self := n.core.crypto.PublicKey()
	if firstHop.Equal(self) {
		return n.core.process(nil, 0, self.Addr(), live)
	}
	return n.core.forward(nil, 0, firstHop.Clone(), live)
}

// SetHandler sets a function to handle packages delivered to component.
// It is called in its own goroutine for every such package. A nil handler sends them to ReadExpired again.
func (n *Node) SetHandler(component types.Component, handler func(*cores.ExpiredCoresPackage)) error {
	if !component.Valid() {
		return BadComponentError{Component: component}
	}
	var err error
	phony.Block(&n.actor, func() {
		if n.IsClosed() {
			err = ClosedError{}
			return
		}
		if handler == nil {
			delete(n.handlers, component)
		} else {
			n.handlers[component] = handler
		}
	})
	return err
}

// ReadExpired returns the next delivered package for a component without a handler.
// Note that failing to call ReadExpired may cause the node to block and/or leak memory.
func (n *Node) ReadExpired() (*cores.ExpiredCoresPackage, error) {
	select {
	case <-n.closed:
		return nil, ClosedError{}
	case <-n.readDeadline.getCancel():
		return nil, DeadlineError{}
	case p := <-n.recv:
		return p, nil
	}
}

// SetReadDeadline sets the time after which ReadExpired fails with a DeadlineError. The zero time clears it.
func (n *Node) SetReadDeadline(t time.Time) error {
	n.readDeadline.set(t)
	return nil
}

// Close shuts down the Node.
func (n *Node) Close() error {
	n.closeMutex.Lock()
	defer n.closeMutex.Unlock()
	select {
	case <-n.closed:
		return ClosedError{}
	default:
	}
	close(n.closed)
	for _, l := range n.listeners {
		l.Close()
	}
	phony.Block(&n.core.peers, func() {
		for _, p := range n.core.peers.peers {
			p.conn.Close()
		}
	})
	return nil
}

// IsClosed returns true if and only if the Node is closed.
func (n *Node) IsClosed() bool {
	select {
	case <-n.closed:
		return true
	default:
	}
	return false
}

func (n *Node) deliver(from phony.Actor, p *cores.ExpiredCoresPackage) {
	n.actor.Act(from, func() {
		n.core.metrics.delivered.WithLabelValues(p.Component.String()).Inc()
		n.core.log.WithFields(logger.Fields{
			"component": p.Component.String(),
			"peer":      p.ImmediateNeighbor.String(),
		}).Debug("Delivered package")
		if handler := n.handlers[p.Component]; handler != nil {
			go handler(p)
			return
		}
		select {
		case n.recv <- p:
		case <-n.closed:
		}
	})
}

type deadline struct {
	m      sync.Mutex
	timer  *time.Timer
	once   *sync.Once
	cancel chan struct{}
}

func newDeadline() *deadline {
	return &deadline{
		once:   new(sync.Once),
		cancel: make(chan struct{}),
	}
}

func (d *deadline) set(t time.Time) {
	d.m.Lock()
	defer d.m.Unlock()
	d.once.Do(func() {
		if d.timer != nil {
			d.timer.Stop()
		}
	})
	select {
	case <-d.cancel:
		d.cancel = make(chan struct{})
	default:
	}
	d.once = new(sync.Once)
	var zero time.Time
	if t != zero {
		once := d.once
		cancel := d.cancel
		d.timer = time.AfterFunc(time.Until(t), func() {
			once.Do(func() { close(cancel) })
		})
	}
}

func (d *deadline) getCancel() chan struct{} {
	d.m.Lock()
	defer d.m.Unlock()
	ch := d.cancel
	return ch
}
