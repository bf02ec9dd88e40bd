package network

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Arceliar/hopper/directory"
	"github.com/Arceliar/hopper/internal/logger"
	"github.com/Arceliar/hopper/masquerade"
	"github.com/Arceliar/hopper/route"
)

type config struct {
	factories    []masquerade.DiscriminatorFactory
	masquerader  masquerade.Masquerader
	directory    directory.Directory
	maxFrameSize int
	maxHops      int
	peerTimeout  time.Duration
	dialTimeout  time.Duration
	queueDelay   time.Duration
	frameRate    rate.Limit
	frameBurst   int
	maxConns     int
	registerer   prometheus.Registerer
	logger       *logger.Logger
}

type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.maxFrameSize = masquerade.DefaultMaxSize
		c.maxHops = route.DefaultMaxHops
		c.peerTimeout = 5 * time.Minute
		c.dialTimeout = 10 * time.Second
		c.queueDelay = 25 * time.Millisecond
		c.frameRate = rate.Inf
		c.frameBurst = 1
		c.logger = logger.GetLogger()
	}
}

// configFinish fills the defaults that depend on other options.
func (c *config) configFinish() {
	sizeOpt := masquerade.WithMaxSize(c.maxFrameSize)
	if len(c.factories) == 0 {
		c.factories = []masquerade.DiscriminatorFactory{
			masquerade.NewJSONDiscriminatorFactory(sizeOpt),
			masquerade.NewTLSDiscriminatorFactory(sizeOpt),
		}
	}
	if c.masquerader == nil {
		c.masquerader = c.factories[0].Masquerader()
	}
	if c.directory == nil {
		c.directory = directory.NewMemory()
	}
}

// WithFactories sets the protocols recognized on inbound connections, in priority order.
func WithFactories(factories ...masquerade.DiscriminatorFactory) Option {
	return func(c *config) {
		c.factories = factories
	}
}

// WithMasquerader sets the protocol used to mask outbound packages.
// It defaults to the first factory's masquerader.
func WithMasquerader(m masquerade.Masquerader) Option {
	return func(c *config) {
		c.masquerader = m
	}
}

func WithDirectory(d directory.Directory) Option {
	return func(c *config) {
		c.directory = d
	}
}

// WithMaxFrameSize bounds the unmasked size of the default masqueraders.
func WithMaxFrameSize(size int) Option {
	return func(c *config) {
		c.maxFrameSize = size
	}
}

// WithMaxHops drops inbound packages whose remaining route is longer than hops. Zero disables the check.
func WithMaxHops(hops int) Option {
	return func(c *config) {
		c.maxHops = hops
	}
}

// WithPeerTimeout closes connections that stay silent for duration. Zero disables the timeout.
func WithPeerTimeout(duration time.Duration) Option {
	return func(c *config) {
		c.peerTimeout = duration
	}
}

func WithDialTimeout(duration time.Duration) Option {
	return func(c *config) {
		c.dialTimeout = duration
	}
}

// WithQueueDelay sets how long the oldest queued frame may wait before a newer one displaces it.
func WithQueueDelay(duration time.Duration) Option {
	return func(c *config) {
		c.queueDelay = duration
	}
}

// WithRateLimit limits each inbound connection to limit frames per second, with the given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *config) {
		c.frameRate = limit
		c.frameBurst = burst
	}
}

// WithMaxConns caps the number of simultaneously accepted connections per listener.
func WithMaxConns(conns int) Option {
	return func(c *config) {
		c.maxConns = conns
	}
}

// WithMetrics registers the node's counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
