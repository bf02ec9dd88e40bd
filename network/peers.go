package network

import (
	"net"
	"time"

	"github.com/Arceliar/phony"
	"golang.org/x/time/rate"

	"github.com/Arceliar/hopper/cores"
	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/masquerade"
)

const peerReadBufferSize = 65535

type peerPort uint64

type peers struct {
	phony.Inbox // Used to create/remove peers and route frames to them
	core        *core
	peers       map[peerPort]*peer
	keyed       map[string]*peer        // links usable for forwarding, by remote key
	pending     map[string]*packetQueue // frames waiting for a link that is being dialed
}

func (ps *peers) init(c *core) {
	ps.core = c
	ps.peers = make(map[peerPort]*peer)
	ps.keyed = make(map[string]*peer)
	ps.pending = make(map[string]*packetQueue)
}

func (ps *peers) addPeer(key cryptde.PublicKey, conn net.Conn) (*peer, error) {
	var p *peer
	ps.core.node.closeMutex.Lock()
	defer ps.core.node.closeMutex.Unlock()
	select {
	case <-ps.core.node.closed:
		return nil, ClosedError{}
	default:
	}
	phony.Block(ps, func() {
		var port peerPort
		for idx := 1; ; idx++ { // skip 0, it marks local traffic
			if _, isIn := ps.peers[peerPort(idx)]; isIn {
				continue
			}
			port = peerPort(idx)
			break
		}
		p = new(peer)
		p.peers = ps
		p.conn = conn
		p.key = key
		p.port = port
		p.writer.peer = p
		p.disc = masquerade.MakeDiscriminator(ps.core.config.factories)
		p.limiter = rate.NewLimiter(ps.core.config.frameRate, ps.core.config.frameBurst)
		p.time = time.Now()
		ps.peers[port] = p
		if len(key) > 0 {
			if _, isIn := ps.keyed[string(key)]; !isIn {
				ps.keyed[string(key)] = p
				if q := ps.pending[string(key)]; q != nil {
					p.queue = *q
					delete(ps.pending, string(key))
				}
			}
		}
		p.pop() // Start the writer, or mark it ready
	})
	ps.core.log.WithFields(logger.Fields{"peer": key.String(), "port": uint64(p.port)}).Debug("Added peer")
	return p, nil
}

func (ps *peers) removePeer(port peerPort) error {
	var err error
	phony.Block(ps, func() {
		p, isIn := ps.peers[port]
		if !isIn {
			err = PeerNotFoundError{}
			return
		}
		delete(ps.peers, port)
		if ps.keyed[string(p.key)] == p {
			delete(ps.keyed, string(p.key))
		}
		p.Act(ps, p._dropQueue)
	})
	return err
}

// sendTo queues frame on the link to key, dialing the address from the directory if there is no link yet.
// The frame is owned by the peers from here on.
func (ps *peers) sendTo(from phony.Actor, src peerPort, key cryptde.PublicKey, frame []byte) {
	ps.Act(from, func() {
		k := string(key)
		if p := ps.keyed[k]; p != nil {
			p.push(ps, src, frame)
			return
		}
		if q := ps.pending[k]; q != nil {
			q.push(src, frame)
			ps.core.metrics.forwarded.Inc()
			return
		}
		addr, err := ps.core.config.directory.Lookup(key)
		if err != nil {
			freeBytes(frame)
			_ = ps.core.drop(err, nil, key)
			return
		}
		q := new(packetQueue)
		q.push(src, frame)
		ps.core.metrics.forwarded.Inc()
		ps.pending[k] = q
		go ps.dial(key.Clone(), addr)
	})
}

func (ps *peers) dial(key cryptde.PublicKey, addr string) {
	d := net.Dialer{Timeout: ps.core.config.dialTimeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		ps.failPending(key, err)
		return
	}
	if err := ps.core.node.HandleConn(key, conn); err != nil {
		ps.core.log.WithField("peer", key.String()).WithError(err).Debug("Outbound link closed")
	}
}

// failPending drops every frame waiting for a link to key.
func (ps *peers) failPending(key cryptde.PublicKey, err error) {
	ps.Act(nil, func() {
		q := ps.pending[string(key)]
		if q == nil {
			return
		}
		delete(ps.pending, string(key))
		for {
			info, ok := q.pop()
			if !ok {
				break
			}
			freeBytes(info.frame)
			_ = ps.core.drop(err, nil, key)
		}
	})
}

type peer struct {
	phony.Inbox // Only used to process or send frames
	peers       *peers
	conn        net.Conn
	key         cryptde.PublicKey // empty for links accepted from unknown nodes
	port        peerPort
	queue       packetQueue
	ready       bool // is the writer ready for traffic?
	writer      peerWriter
	disc        *masquerade.Discriminator
	limiter     *rate.Limiter
	time        time.Time // time when the peer was initialized
	rx          uint64
	tx          uint64
	skipped     uint64 // bytes the discriminator has thrown away
}

type peerWriter struct {
	phony.Inbox
	peer *peer
}

func (w *peerWriter) sendFrame(frame []byte) {
	w.Act(nil, func() {
		_, err := w.peer.conn.Write(frame)
		freeBytes(frame)
		if err != nil {
			// The read loop notices the closed conn and removes the peer.
			w.peer.conn.Close()
			return
		}
		w.peer.pop() // Ask for more traffic to send
	})
}

func (p *peer) handler() error {
	bs := allocBytes(peerReadBufferSize)
	defer freeBytes(bs)
	for {
		if timeout := p.peers.core.config.peerTimeout; timeout > 0 {
			if err := p.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return err
			}
		}
		n, err := p.conn.Read(bs)
		if n > 0 {
			phony.Block(p, func() {
				p._handleData(bs[:n])
			})
		}
		if err != nil {
			return err
		}
	}
}

func (p *peer) _handleData(data []byte) {
	// Note: this function should be non-blocking.
	c := p.peers.core
	p.disc.AddData(data)
	frames := p.disc.TakeFrames()
	if dropped := p.disc.Dropped(); dropped != p.skipped {
		c.log.WithFields(logger.Fields{"peer": p.key.String(), "bytes": dropped - p.skipped}).Debug("Skipped unrecognized data")
		p.skipped = dropped
	}
	for _, frame := range frames {
		p.rx++
		c.metrics.frames.WithLabelValues(frame.Protocol).Inc()
		if !p.limiter.Allow() {
			_ = c.drop(RateLimitError{}, p.key.Addr(), nil)
			continue
		}
		live, err := cores.UnmarshalLive(frame.Data)
		if err != nil {
			_ = c.drop(err, p.key.Addr(), nil)
			continue
		}
		_ = c.process(p, p.port, p.key.Addr(), live)
	}
}

func (p *peer) push(from phony.Actor, src peerPort, frame []byte) {
	p.Act(from, func() {
		p._push(src, frame)
	})
}

func (p *peer) _push(src peerPort, frame []byte) {
	p.peers.core.metrics.forwarded.Inc()
	if p.ready {
		p.tx++
		p.writer.sendFrame(frame)
		p.ready = false
		return
	}
	// We're waiting, so queue the frame up for later
	if info, ok := p.queue.peek(); ok && time.Since(info.time) > p.peers.core.config.queueDelay {
		// The queue already has a significant delay
		// Drop the oldest frame from the largest queue to make room
		if dropped, ok := p.queue.drop(); ok {
			freeBytes(dropped.frame)
			_ = p.peers.core.drop(CongestionError{}, nil, p.key)
		}
	}
	p.queue.push(src, frame)
}

func (p *peer) pop() {
	p.Act(nil, func() {
		if info, ok := p.queue.pop(); ok {
			p.tx++
			p.writer.sendFrame(info.frame)
		} else {
			p.ready = true
		}
	})
}

func (p *peer) _dropQueue() {
	for {
		info, ok := p.queue.pop()
		if !ok {
			return
		}
		freeBytes(info.frame)
		_ = p.peers.core.drop(ClosedError{}, nil, p.key)
	}
}
