// Package cores holds the CORES package forms a relay moves between:
// Incipient (built by an originator), Live (in transit, one per hop) and
// Expired (peeled at its destination and ready for local delivery).
package cores

import (
	"errors"

	"github.com/fxamacker/cbor/v2"

	"github.com/Arceliar/hopper/cryptde"
	"github.com/Arceliar/hopper/route"
	"github.com/Arceliar/hopper/types"
)

type State uint8

const (
	StateIncipient State = iota
	StateInTransit
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIncipient:
		return "Incipient"
	case StateInTransit:
		return "InTransit"
	case StateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// IncipientCoresPackage is an outbound package that has not been transmitted.
// Its payload is encrypted for the final recipient, not the first hop.
type IncipientCoresPackage struct {
	route    route.Route
	payload  []byte
	consumed bool
}

// NewIncipient CBOR-encodes payload and encrypts it for payloadKey.
func NewIncipient(r route.Route, payload interface{}, payloadKey cryptde.PublicKey, cde cryptde.CryptDE) (*IncipientCoresPackage, error) {
	data, err := cbor.Marshal(payload)
	if err != nil {
		return nil, EncodeError{Err: err}
	}
	return NewIncipientRaw(r, data, payloadKey, cde)
}

// NewIncipientRaw encrypts already serialized payload bytes for payloadKey.
func NewIncipientRaw(r route.Route, data []byte, payloadKey cryptde.PublicKey, cde cryptde.CryptDE) (*IncipientCoresPackage, error) {
	if r.IsEmpty() {
		return nil, route.EmptyRouteError{}
	}
	enc, err := cde.Encrypt(payloadKey, data)
	if err != nil {
		return nil, EncodeError{Err: err}
	}
	return &IncipientCoresPackage{route: r, payload: enc}, nil
}

func (p *IncipientCoresPackage) Route() route.Route {
	return p.route
}

// Live hands the package over for transmission. It may be called only once.
func (p *IncipientCoresPackage) Live() (*LiveCoresPackage, error) {
	if p.consumed {
		return nil, ConsumedError{}
	}
	p.consumed = true
	live := &LiveCoresPackage{Route: p.route, Payload: p.payload}
	p.route, p.payload = route.Route{}, nil
	return live, nil
}

func (p *IncipientCoresPackage) State() State {
	if p.consumed {
		return StateInTransit
	}
	return StateIncipient
}

// LiveCoresPackage is a package in transit; its encoding is what a Masquerader wraps.
type LiveCoresPackage struct {
	Route   route.Route
	Payload []byte
}

type liveWire struct {
	Route   route.Route `cbor:"1,keyasint"`
	Payload []byte      `cbor:"2,keyasint"`
}

func (p *LiveCoresPackage) MarshalBinary() ([]byte, error) {
	bs, err := cbor.Marshal(liveWire{Route: p.Route, Payload: p.Payload})
	if err != nil {
		return nil, EncodeError{Err: err}
	}
	return bs, nil
}

func UnmarshalLive(data []byte) (*LiveCoresPackage, error) {
	var w liveWire
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, DecodeError{Err: err}
	}
	if w.Route.IsEmpty() {
		return nil, DecodeError{Err: route.EmptyRouteError{}}
	}
	return &LiveCoresPackage{Route: w.Route, Payload: w.Payload}, nil
}

// ExpiredCoresPackage is a package whose route has been peeled down to this node.
// RemainingRoute is empty unless the route carried a return segment.
type ExpiredCoresPackage struct {
	ImmediateNeighbor types.Addr
	Component         types.Component
	RemainingRoute    route.Route
	Payload           []byte
}

// DecodePayload CBOR-decodes the payload into v.
func (p *ExpiredCoresPackage) DecodePayload(v interface{}) error {
	if err := cbor.Unmarshal(p.Payload, v); err != nil {
		return DecodeError{Err: err}
	}
	return nil
}

// StepResult is the outcome of one relay step.
// Exactly one of Forward and Expired is set.
type StepResult struct {
	Outcome route.HopOutcome
	Forward *LiveCoresPackage
	Expired *ExpiredCoresPackage
}

// Step peels the front hop of live with the local key. The caller gives up live.
// On Forward the shortened package is returned for transmission to Outcome.Next;
// on DeliverLocally the payload is decrypted into an ExpiredCoresPackage.
func Step(live *LiveCoresPackage, cde cryptde.CryptDE, from types.Addr) (StepResult, error) {
	if live == nil {
		return StepResult{}, DecodeError{Err: errors.New("nil package")}
	}
	outcome, rest, err := live.Route.Shift(cde.PrivateKey(), cde)
	if err != nil {
		return StepResult{}, err
	}
	switch outcome.Kind {
	case route.Forward:
		return StepResult{
			Outcome: outcome,
			Forward: &LiveCoresPackage{Route: rest, Payload: live.Payload},
		}, nil
	case route.DeliverLocally:
		data, err := cde.Decrypt(cde.PrivateKey(), live.Payload)
		if err != nil {
			return StepResult{}, PayloadError{Err: err}
		}
		return StepResult{
			Outcome: outcome,
			Expired: &ExpiredCoresPackage{
				ImmediateNeighbor: from,
				Component:         outcome.Component,
				RemainingRoute:    rest,
				Payload:           data,
			},
		}, nil
	default:
		return StepResult{}, DecodeError{Err: errors.New("unknown hop outcome")}
	}
}
