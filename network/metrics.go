package network

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/Arceliar/hopper/cores"
	"github.com/Arceliar/hopper/directory"
	"github.com/Arceliar/hopper/masquerade"
	"github.com/Arceliar/hopper/route"
)

type metrics struct {
	forwarded prometheus.Counter
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	frames    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		forwarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "hopper_packages_forwarded_total",
				Help: "Number of packages forwarded to another node",
			},
		),
		delivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_packages_delivered_total",
				Help: "Number of packages delivered to a local component",
			},
			[]string{"component"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_packages_dropped_total",
				Help: "Number of dropped packages",
			},
			[]string{"reason"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hopper_frames_received_total",
				Help: "Number of unmasked frames received",
			},
			[]string{"protocol"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.forwarded, m.delivered, m.dropped, m.frames} {
		if err := reg.Register(c); err != nil {
			return nil, oops.In("network").Wrapf(err, "failed to register metrics")
		}
	}
	return m, nil
}

// dropReason maps an error to the reason label of the dropped counter.
func dropReason(err error) string {
	switch {
	case errors.As(err, new(route.CannotDecryptError)):
		return "route"
	case errors.As(err, new(cores.PayloadError)):
		return "payload"
	case errors.As(err, new(cores.DecodeError)), errors.As(err, new(cores.EncodeError)):
		return "decode"
	case errors.As(err, new(directory.NotFoundError)):
		return "no_address"
	case errors.As(err, new(TooManyHopsError)):
		return "hops"
	case errors.As(err, new(RateLimitError)):
		return "rate"
	case errors.As(err, new(CongestionError)):
		return "congestion"
	case errors.As(err, new(ClosedError)):
		return "closed"
	case errors.As(err, new(masquerade.TooLargeError)), errors.As(err, new(masquerade.MalformedError)):
		return "mask"
	default:
		return "other"
	}
}
