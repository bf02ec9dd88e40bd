// Package harness drives CORES packages over real sockets for integration tests:
// a server that stands in for a final recipient, a client that plays originator,
// and a probe that waits for a node to stop listening.
package harness

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/Arceliar/hopper/cores"
	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/masquerade"
	"github.com/Arceliar/hopper/route"
	"github.com/Arceliar/hopper/types"
)

const (
	DefaultShutdownInterval = 250 * time.Millisecond
	DefaultShutdownAttempts = 4
)

type TimeoutError struct{}

func (e TimeoutError) Error() string {
	return "TimeoutError"
}

type ClosedError struct{}

func (e ClosedError) Error() string {
	return "ClosedError"
}

// MisdirectedError means a package's route pointed somewhere other than expected.
type MisdirectedError struct {
	Outcome route.HopOutcome
}

func (e MisdirectedError) Error() string {
	return "MisdirectedError: " + e.Outcome.String()
}

// StillRunningError is returned by AwaitShutdown when the endpoint kept accepting connections.
type StillRunningError struct {
	Addr string
}

func (e StillRunningError) Error() string {
	return "StillRunningError: " + e.Addr
}

var log = logger.GetLogger()

// CoresServer accepts connections, discriminates and unmasks their frames,
// and peels every package it receives until it is delivered here.
type CoresServer struct {
	listener  net.Listener
	factories []masquerade.DiscriminatorFactory
	cde       cryptde.CryptDE
	expired   chan *cores.ExpiredCoresPackage
	mutex     sync.Mutex
	conns     map[net.Conn]struct{}
	closed    chan struct{}
	wg        sync.WaitGroup
}

// NewCoresServer listens on the TCP address addr ("127.0.0.1:0" picks a free port).
func NewCoresServer(addr string, factories []masquerade.DiscriminatorFactory, cde cryptde.CryptDE) (*CoresServer, error) {
	if len(factories) == 0 {
		return nil, oops.In("harness").Errorf("no discriminator factories")
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.In("harness").With("addr", addr).Wrapf(err, "failed to listen")
	}
	s := &CoresServer{
		listener:  l,
		factories: factories,
		cde:       cde,
		expired:   make(chan *cores.ExpiredCoresPackage, 64),
		conns:     make(map[net.Conn]struct{}),
		closed:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// LocalAddr returns the address the server is listening on.
func (s *CoresServer) LocalAddr() net.Addr {
	return s.listener.Addr()
}

func (s *CoresServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mutex.Lock()
		select {
		case <-s.closed:
			s.mutex.Unlock()
			conn.Close()
			return
		default:
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mutex.Unlock()
		go s.handle(conn)
	}
}

func (s *CoresServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mutex.Lock()
		delete(s.conns, conn)
		s.mutex.Unlock()
		conn.Close()
	}()
	disc := masquerade.MakeDiscriminator(s.factories)
	buf := make([]byte, 65535)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			disc.AddData(buf[:n])
			for _, frame := range disc.TakeFrames() {
				s.handleFrame(frame)
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *CoresServer) handleFrame(frame masquerade.Frame) {
	live, err := cores.UnmarshalLive(frame.Data)
	if err != nil {
		log.WithError(err).Warn("Server could not decode package")
		return
	}
	expired, err := peel(live, s.cde)
	if err != nil {
		log.WithField("protocol", frame.Protocol).WithError(err).Warn("Server dropped package")
		return
	}
	select {
	case s.expired <- expired:
	case <-s.closed:
	}
}

// peel shifts live with cde until it is delivered, failing if it is meant for another node.
func peel(live *cores.LiveCoresPackage, cde cryptde.CryptDE) (*cores.ExpiredCoresPackage, error) {
	self := cde.PublicKey()
	var from types.Addr
	for {
		res, err := cores.Step(live, cde, from)
		if err != nil {
			return nil, err
		}
		if res.Expired != nil {
			return res.Expired, nil
		}
		if !res.Outcome.Next.Equal(self) {
			return nil, MisdirectedError{Outcome: res.Outcome}
		}
		live, from = res.Forward, self.Addr()
	}
}

// WaitForPackage returns the next delivered package, or a TimeoutError.
func (s *CoresServer) WaitForPackage(timeout time.Duration) (*cores.ExpiredCoresPackage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case p := <-s.expired:
		return p, nil
	case <-s.closed:
		return nil, ClosedError{}
	case <-timer.C:
		return nil, TimeoutError{}
	}
}

// Close stops listening, closes every accepted connection and waits for their handlers.
func (s *CoresServer) Close() error {
	s.mutex.Lock()
	select {
	case <-s.closed:
		s.mutex.Unlock()
		return ClosedError{}
	default:
	}
	close(s.closed)
	err := s.listener.Close()
	for conn := range s.conns {
		conn.Close()
	}
	s.mutex.Unlock()
	s.wg.Wait()
	return err
}

// CoresClient plays the originator of packages sent to a single address.
type CoresClient struct {
	addr string
	cde  cryptde.CryptDE
}

func NewCoresClient(addr string, cde cryptde.CryptDE) *CoresClient {
	return &CoresClient{addr: addr, cde: cde}
}

// TransmitPackage masks p and writes it to the client's address, addressed to firstHop.
// If the client owns the route's first hop it peels that hop first, which must point at firstHop.
// It returns the package as it was put on the wire.
func (c *CoresClient) TransmitPackage(p *cores.IncipientCoresPackage, m masquerade.Masquerader, firstHop cryptde.PublicKey) (*cores.LiveCoresPackage, error) {
	live, err := p.Live()
	if err != nil {
		return nil, err
	}
	res, err := cores.Step(live, c.cde, nil)
	switch {
	case errors.As(err, new(route.CannotDecryptError)):
		// The first hop is someone else's, so the route goes out as it is.
	case err != nil:
		return nil, err
	case res.Expired != nil || !res.Outcome.Next.Equal(firstHop):
		return nil, MisdirectedError{Outcome: res.Outcome}
	default:
		live = res.Forward
	}
	bs, err := live.MarshalBinary()
	if err != nil {
		return nil, err
	}
	wire, err := m.Mask(bs)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, oops.In("harness").With("addr", c.addr).Wrapf(err, "failed to connect")
	}
	defer conn.Close()
	if _, err := conn.Write(wire); err != nil {
		return nil, oops.In("harness").With("addr", c.addr).Wrapf(err, "failed to write package")
	}
	log.WithFields(logger.Fields{"addr": c.addr, "first_hop": firstHop.String(), "bytes": len(wire)}).Debug("Transmitted package")
	return live, nil
}

// AwaitShutdown polls addr every interval until a connection attempt fails,
// giving up with a StillRunningError after limit successful attempts.
func AwaitShutdown(addr string, interval time.Duration, limit int) error {
	for attempt := 0; attempt < limit; attempt++ {
		conn, err := net.DialTimeout("tcp", addr, interval)
		if err != nil {
			return nil
		}
		conn.Close()
		time.Sleep(interval)
	}
	return StillRunningError{Addr: addr}
}
