package route

import "fmt"

// MalformedError is returned when route segments cannot describe a route.
type MalformedError struct {
	Reason string
}

func (e MalformedError) Error() string {
	return "MalformedError: " + e.Reason
}

// DiscontinuousError is returned when segment Index does not start where segment Index-1 ended.
type DiscontinuousError struct {
	Index int
}

func (e DiscontinuousError) Error() string {
	return fmt.Sprintf("DiscontinuousError: segment %d does not begin with the last key of segment %d", e.Index, e.Index-1)
}

type TooManyHopsError struct {
	Hops int
	Max  int
}

func (e TooManyHopsError) Error() string {
	return fmt.Sprintf("TooManyHopsError: %d hops, limit %d", e.Hops, e.Max)
}

type EmptyRouteError struct{}

func (e EmptyRouteError) Error() string {
	return "EmptyRouteError"
}

// CannotDecryptError is returned by Shift when the front hop is not readable with the given key.
type CannotDecryptError struct {
	Err error
}

func (e CannotDecryptError) Error() string {
	if e.Err == nil {
		return "CannotDecryptError"
	}
	return "CannotDecryptError: " + e.Err.Error()
}

func (e CannotDecryptError) Unwrap() error {
	return e.Err
}
