package cores

type EncodeError struct {
	Err error
}

func (e EncodeError) Error() string {
	return "EncodeError: " + e.Err.Error()
}

func (e EncodeError) Unwrap() error {
	return e.Err
}

type DecodeError struct {
	Err error
}

func (e DecodeError) Error() string {
	return "DecodeError: " + e.Err.Error()
}

func (e DecodeError) Unwrap() error {
	return e.Err
}

// PayloadError is returned when the payload of a delivered package cannot be decrypted.
type PayloadError struct {
	Err error
}

func (e PayloadError) Error() string {
	return "PayloadError: " + e.Err.Error()
}

func (e PayloadError) Unwrap() error {
	return e.Err
}

type ConsumedError struct{}

func (e ConsumedError) Error() string {
	return "ConsumedError"
}
