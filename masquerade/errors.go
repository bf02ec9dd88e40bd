package masquerade

import "fmt"

// IncompleteError means the input holds only part of a frame.
// It is not a transport failure: buffer more data and try again.
type IncompleteError struct{}

func (e IncompleteError) Error() string {
	return "IncompleteError"
}

type TooLargeError struct {
	Size int
	Max  int
}

func (e TooLargeError) Error() string {
	return fmt.Sprintf("TooLargeError: %d bytes, limit %d", e.Size, e.Max)
}

// MalformedError means the frame at the front of the input must be dropped.
type MalformedError struct {
	Reason string
}

func (e MalformedError) Error() string {
	return "MalformedError: " + e.Reason
}
