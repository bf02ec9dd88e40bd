package network

import (
	"github.com/Arceliar/phony"

	"github.com/Arceliar/hopper/cores"
	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/types"
)

type core struct {
	config  config          // options given to NewNode, with defaults filled in
	crypto  cryptde.CryptDE // the local keys, used to peel routes and payloads
	peers   peers           // info about peers (from HandleConn), and queues for links being dialed
	node    Node            // the public API
	metrics *metrics
	log     *logger.Logger
}

func (c *core) init(cde cryptde.CryptDE, opts ...Option) error {
	if cde == nil || len(cde.PublicKey()) == 0 {
		return BadKeyError{}
	}
	c.crypto = cde
	configDefaults()(&c.config)
	for _, opt := range opts {
		opt(&c.config)
	}
	c.config.configFinish()
	c.log = c.config.logger
	var err error
	if c.metrics, err = newMetrics(c.config.registerer); err != nil {
		return err
	}
	c.peers.init(c)
	c.node.init(c)
	return nil
}

// process runs live through as many local steps as it takes to either deliver it
// here or hand it to the peer link for the next node. It must not block.
func (c *core) process(from phony.Actor, src peerPort, neighbor types.Addr, live *cores.LiveCoresPackage) error {
	if limit := c.config.maxHops; limit > 0 && live.Route.Len() > limit {
		return c.drop(TooManyHopsError{Hops: live.Route.Len(), Max: limit}, neighbor, nil)
	}
	self := c.crypto.PublicKey()
	for {
		res, err := cores.Step(live, c.crypto, neighbor)
		if err != nil {
			return c.drop(err, neighbor, nil)
		}
		if res.Expired != nil {
			c.node.deliver(from, res.Expired)
			return nil
		}
		next := res.Outcome.Next
		if !next.Equal(self) {
			return c.forward(from, src, next, res.Forward)
		}
		// The next hop is this node again; keep peeling without touching the network.
		live, neighbor = res.Forward, self.Addr()
	}
}

// forward masks live and queues it on the link to next.
func (c *core) forward(from phony.Actor, src peerPort, next cryptde.PublicKey, live *cores.LiveCoresPackage) error {
	bs, err := live.MarshalBinary()
	if err != nil {
		return c.drop(err, nil, next)
	}
	wire, err := c.config.masquerader.Mask(bs)
	if err != nil {
		return c.drop(err, nil, next)
	}
	frame := append(allocBytes(0), wire...)
	c.peers.sendTo(from, src, next, frame)
	return nil
}

// drop counts and logs a package that will not travel further, and returns err.
func (c *core) drop(err error, neighbor types.Addr, next cryptde.PublicKey) error {
	reason := dropReason(err)
	c.metrics.dropped.WithLabelValues(reason).Inc()
	fields := logger.Fields{"reason": reason}
	if len(neighbor) > 0 {
		fields["peer"] = neighbor.String()
	}
	if len(next) > 0 {
		fields["next"] = next.String()
	}
	c.log.WithFields(fields).WithError(err).Warn("Dropped package")
	return err
}
