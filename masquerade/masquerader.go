// Package masquerade disguises CORES packages inside other framing protocols
// and recovers them from a byte stream that may carry several protocols.
package masquerade

// DefaultMaxSize is the largest package a masquerader accepts by default.
const DefaultMaxSize = 1048576 // 1 megabyte

// UnmaskedChunk is one frame recovered from the front of a byte stream.
type UnmaskedChunk struct {
	Data     []byte
	Consumed int // bytes of input the frame occupied
}

// Masquerader converts between raw package bytes and a disguised wire frame.
// Implementations are stateless and safe for concurrent use.
type Masquerader interface {
	// Name identifies the framing protocol, e.g. "json".
	Name() string
	// Recognizes reports whether data starts the way this protocol's frames start.
	Recognizes(data []byte) bool
	// Mask wraps data in one self-delimited frame.
	Mask(data []byte) ([]byte, error)
	// TryUnmask recovers the first frame in data.
	// It returns IncompleteError when data ends before the frame does.
	TryUnmask(data []byte) (UnmaskedChunk, error)
}

// Unmask recovers data from exactly one whole frame.
func Unmask(m Masquerader, frame []byte) ([]byte, error) {
	chunk, err := m.TryUnmask(frame)
	if err != nil {
		return nil, err
	}
	if chunk.Consumed != len(frame) {
		return nil, MalformedError{Reason: "trailing data after frame"}
	}
	return chunk.Data, nil
}

type config struct {
	maxSize int
}

type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.maxSize = DefaultMaxSize
	}
}

// WithMaxSize sets the largest package a masquerader will mask or unmask.
func WithMaxSize(size int) Option {
	return func(c *config) {
		c.maxSize = size
	}
}

func newConfig(opts []Option) config {
	var c config
	opts = append([]Option{configDefaults()}, opts...)
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
