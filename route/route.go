// Package route builds and consumes layered, per-hop encrypted routes.
//
// Hop i of a route is readable only by the holder of the i-th key. It names
// the next key, or the component to deliver to when the key ends a segment,
// and commits to every hop after it, so the remainder cannot be swapped or
// reordered without the current holder noticing.
package route

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/types"
)

const DefaultMaxHops = 32

type config struct {
	maxHops int
}

type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.maxHops = DefaultMaxHops
	}
}

// WithMaxHops limits the number of hops New will build. Zero disables the limit.
func WithMaxHops(hops int) Option {
	return func(c *config) {
		c.maxHops = hops
	}
}

type OutcomeKind uint8

const (
	Forward OutcomeKind = iota + 1
	DeliverLocally
)

func (k OutcomeKind) String() string {
	switch k {
	case Forward:
		return "Forward"
	case DeliverLocally:
		return "DeliverLocally"
	default:
		return "Unknown"
	}
}

// HopOutcome is what the holder of the front hop learns by shifting it.
type HopOutcome struct {
	Kind      OutcomeKind
	Next      cryptde.PublicKey // set for Forward
	Component types.Component   // set for DeliverLocally
}

func (o HopOutcome) String() string {
	if o.Kind == Forward {
		return fmt.Sprintf("Forward(%s)", o.Next)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Component)
}

// hop is the plaintext of one hop entry. Tail is the digest of the hops that follow it.
type hop struct {
	_         struct{} `cbor:",toarray"`
	Deliver   bool
	Next      []byte
	Component uint8
	Tail      []byte
}

// Route is an ordered list of encrypted hop entries, front hop first.
// It is a value: Shift returns a shorter Route and never touches its receiver.
type Route struct {
	Hops [][]byte
}

// New builds a route over segments, encrypting each hop for its key with cde.
func New(segments []Segment, cde cryptde.CryptDE, opts ...Option) (Route, error) {
	var cfg config
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := checkSegments(segments); err != nil {
		return Route{}, err
	}
	var keys []cryptde.PublicKey
	var plain []hop
	for _, seg := range segments {
		for idx, key := range seg.Keys {
			h := hop{}
			if idx == len(seg.Keys)-1 {
				h.Deliver = true
				h.Component = uint8(seg.Component)
			} else {
				h.Next = seg.Keys[idx+1].Clone()
			}
			keys = append(keys, key)
			plain = append(plain, h)
		}
	}
	if cfg.maxHops > 0 && len(plain) > cfg.maxHops {
		return Route{}, TooManyHopsError{Hops: len(plain), Max: cfg.maxHops}
	}
	hops := make([][]byte, len(plain))
	// Back to front, so each hop can commit to the ciphertext that follows it.
	for idx := len(plain) - 1; idx >= 0; idx-- {
		h := plain[idx]
		h.Tail = digestHops(hops[idx+1:])
		bs, err := cbor.Marshal(&h)
		if err != nil {
			return Route{}, MalformedError{Reason: err.Error()}
		}
		if hops[idx], err = cde.Encrypt(keys[idx], bs); err != nil {
			return Route{}, MalformedError{Reason: "cannot encrypt hop: " + err.Error()}
		}
	}
	return Route{Hops: hops}, nil
}

// Shift decrypts the front hop with key and returns its outcome along with the remaining route.
// On failure the route is unchanged and the returned Route is the zero value.
func (r Route) Shift(key cryptde.PrivateKey, cde cryptde.CryptDE) (HopOutcome, Route, error) {
	if len(r.Hops) == 0 {
		return HopOutcome{}, Route{}, EmptyRouteError{}
	}
	bs, err := cde.Decrypt(key, r.Hops[0])
	if err != nil {
		return HopOutcome{}, Route{}, CannotDecryptError{Err: err}
	}
	var h hop
	if err := cbor.Unmarshal(bs, &h); err != nil {
		return HopOutcome{}, Route{}, CannotDecryptError{Err: err}
	}
	rest := r.Hops[1:]
	if !bytes.Equal(h.Tail, digestHops(rest)) {
		return HopOutcome{}, Route{}, CannotDecryptError{Err: errors.New("remaining route does not match hop")}
	}
	var outcome HopOutcome
	switch {
	case h.Deliver:
		component := types.Component(h.Component)
		if !component.Valid() {
			return HopOutcome{}, Route{}, CannotDecryptError{Err: fmt.Errorf("unknown component %d", h.Component)}
		}
		outcome = HopOutcome{Kind: DeliverLocally, Component: component}
	case len(h.Next) == 0:
		return HopOutcome{}, Route{}, CannotDecryptError{Err: errors.New("forward hop without next key")}
	default:
		outcome = HopOutcome{Kind: Forward, Next: cryptde.PublicKey(h.Next)}
	}
	return outcome, Route{Hops: rest}, nil
}

// ShiftInPlace is Shift for callers holding the route exclusively.
// The route is only shortened when the shift succeeds.
func (r *Route) ShiftInPlace(key cryptde.PrivateKey, cde cryptde.CryptDE) (HopOutcome, error) {
	outcome, rest, err := r.Shift(key, cde)
	if err != nil {
		return outcome, err
	}
	*r = rest
	return outcome, nil
}

func (r Route) Len() int {
	return len(r.Hops)
}

func (r Route) IsEmpty() bool {
	return len(r.Hops) == 0
}

func (r Route) Equal(other Route) bool {
	if len(r.Hops) != len(other.Hops) {
		return false
	}
	for idx := range r.Hops {
		if !bytes.Equal(r.Hops[idx], other.Hops[idx]) {
			return false
		}
	}
	return true
}

func (r Route) Clone() Route {
	var c Route
	for _, h := range r.Hops {
		c.Hops = append(c.Hops, append([]byte(nil), h...))
	}
	return c
}

func (r Route) String() string {
	return fmt.Sprintf("Route(%d hops)", len(r.Hops))
}

type routeWire struct {
	Hops [][]byte `cbor:"1,keyasint"`
}

func (r Route) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(routeWire{Hops: r.Hops})
}

func (r *Route) UnmarshalBinary(data []byte) error {
	var w routeWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	for _, h := range w.Hops {
		if len(h) == 0 {
			return MalformedError{Reason: "empty hop"}
		}
	}
	r.Hops = w.Hops
	return nil
}

func digestHops(hops [][]byte) []byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic("blake2b: " + err.Error())
	}
	var buf [binary.MaxVarintLen64]byte
	for _, bs := range hops {
		l := binary.PutUvarint(buf[:], uint64(len(bs)))
		_, _ = h.Write(buf[:l])
		_, _ = h.Write(bs)
	}
	return h.Sum(nil)
}
