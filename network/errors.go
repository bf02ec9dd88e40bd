package network

import "github.com/Arceliar/hopper/types"

type ClosedError struct{}

func (e ClosedError) Error() string {
	return "ClosedError"
}

type DeadlineError struct{}

func (e DeadlineError) Error() string {
	return "DeadlineError"
}

type PeerNotFoundError struct{}

func (e PeerNotFoundError) Error() string {
	return "PeerNotFoundError"
}

type BadKeyError struct{}

func (e BadKeyError) Error() string {
	return "BadKeyError"
}

type SelfConnectionError struct{}

func (e SelfConnectionError) Error() string {
	return "SelfConnectionError"
}

// NotOriginatorError is returned by Send when the route's first hop does not belong to this node.
type NotOriginatorError struct {
	Err error
}

func (e NotOriginatorError) Error() string {
	return "NotOriginatorError: " + e.Err.Error()
}

func (e NotOriginatorError) Unwrap() error {
	return e.Err
}

// TooManyHopsError is the drop reason for packages whose route exceeds the configured limit.
type TooManyHopsError struct {
	Hops int
	Max  int
}

func (e TooManyHopsError) Error() string {
	return "TooManyHopsError"
}

type RateLimitError struct{}

func (e RateLimitError) Error() string {
	return "RateLimitError"
}

type CongestionError struct{}

func (e CongestionError) Error() string {
	return "CongestionError"
}

type BadComponentError struct {
	Component types.Component
}

func (e BadComponentError) Error() string {
	return "BadComponentError: " + e.Component.String()
}
