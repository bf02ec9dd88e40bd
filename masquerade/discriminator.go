package masquerade

import "errors"

// Frame is one package's raw bytes recovered from a stream.
type Frame struct {
	Protocol string
	Data     []byte
}

// Discriminator reassembles frames from a byte stream shared by several framing protocols.
// It buffers partial frames between calls, so each connection needs its own.
// It is not safe for concurrent use.
type Discriminator struct {
	masqueraders []Masquerader
	buf          []byte
	dropped      uint64
	head         Masquerader // protocol of the frame at the front of buf
	scanner      frameScanner
}

// NewDiscriminator tries masqueraders in the given priority order for every frame.
func NewDiscriminator(masqueraders ...Masquerader) *Discriminator {
	return &Discriminator{masqueraders: append([]Masquerader(nil), masqueraders...)}
}

// AddData appends bytes read from the connection.
func (d *Discriminator) AddData(data []byte) {
	d.buf = append(d.buf, data...)
}

// TakeFrames returns every whole frame buffered so far, keeping any trailing partial frame.
// Bytes that no masquerader can make sense of are discarded.
func (d *Discriminator) TakeFrames() []Frame {
	var frames []Frame
	for len(d.buf) > 0 {
		m := d.recognize(d.buf)
		if m == nil {
			d.resync()
			continue
		}
		chunk, err := d.unmaskHead(m)
		if err != nil {
			if errors.As(err, new(IncompleteError)) {
				break
			}
			d.resync()
			continue
		}
		frames = append(frames, Frame{
			Protocol: m.Name(),
			Data:     append([]byte(nil), chunk.Data...),
		})
		d.buf = d.buf[chunk.Consumed:]
		d.head, d.scanner = nil, nil
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered returns the number of bytes held for an unfinished frame.
func (d *Discriminator) Buffered() int {
	return len(d.buf)
}

// Dropped returns the number of bytes discarded while resynchronizing.
func (d *Discriminator) Dropped() uint64 {
	return d.dropped
}

// unmaskHead unmasks the frame at the front of buf. Masqueraders that can find
// frame boundaries are scanned incrementally across calls, so a frame that
// arrives in many reads is examined once per byte and decoded once.
func (d *Discriminator) unmaskHead(m Masquerader) (UnmaskedChunk, error) {
	b, ok := m.(boundaryFinder)
	if !ok {
		return m.TryUnmask(d.buf)
	}
	if d.head != m || d.scanner == nil {
		d.head, d.scanner = m, b.newScanner()
	}
	end, err := d.scanner.scan(d.buf)
	if err != nil {
		return UnmaskedChunk{}, err
	}
	chunk, err := m.TryUnmask(d.buf[:end])
	if errors.As(err, new(IncompleteError)) {
		return UnmaskedChunk{}, MalformedError{Reason: "frame ended early"}
	}
	return chunk, err
}

func (d *Discriminator) recognize(data []byte) Masquerader {
	for _, m := range d.masqueraders {
		if m.Recognizes(data) {
			return m
		}
	}
	return nil
}

// resync drops bytes up to the next position where some protocol could start.
func (d *Discriminator) resync() {
	idx := 1
	for ; idx < len(d.buf); idx++ {
		if d.recognize(d.buf[idx:]) != nil {
			break
		}
	}
	d.dropped += uint64(idx)
	d.buf = d.buf[idx:]
	d.head, d.scanner = nil, nil
}

// DiscriminatorFactory provides one framing protocol for a deployment.
type DiscriminatorFactory interface {
	Name() string
	Masquerader() Masquerader
	// Make returns a fresh Discriminator for a single connection.
	Make() *Discriminator
}

// MakeDiscriminator builds one connection's Discriminator over every factory, in priority order.
func MakeDiscriminator(factories []DiscriminatorFactory) *Discriminator {
	var ms []Masquerader
	for _, f := range factories {
		ms = append(ms, f.Masquerader())
	}
	return NewDiscriminator(ms...)
}

type JSONDiscriminatorFactory struct {
	masquerader *JSONMasquerader
}

func NewJSONDiscriminatorFactory(opts ...Option) *JSONDiscriminatorFactory {
	return &JSONDiscriminatorFactory{masquerader: NewJSONMasquerader(opts...)}
}

func (f *JSONDiscriminatorFactory) Name() string { return f.masquerader.Name() }
func (f *JSONDiscriminatorFactory) Masquerader() Masquerader { return f.masquerader }
func (f *JSONDiscriminatorFactory) Make() *Discriminator { return NewDiscriminator(f.masquerader) }

type TLSDiscriminatorFactory struct {
	masquerader *TLSMasquerader
}

func NewTLSDiscriminatorFactory(opts ...Option) *TLSDiscriminatorFactory {
	return &TLSDiscriminatorFactory{masquerader: NewTLSMasquerader(opts...)}
}

func (f *TLSDiscriminatorFactory) Name() string { return f.masquerader.Name() }
func (f *TLSDiscriminatorFactory) Masquerader() Masquerader { return f.masquerader }
func (f *TLSDiscriminatorFactory) Make() *Discriminator { return NewDiscriminator(f.masquerader) }

// FactoryByName returns the factory for a protocol name used in configuration.
func FactoryByName(name string, opts ...Option) (DiscriminatorFactory, bool) {
	switch name {
	case "json":
		return NewJSONDiscriminatorFactory(opts...), true
	case "tls":
		return NewTLSDiscriminatorFactory(opts...), true
	default:
		return nil, false
	}
}

// MasqueraderByName returns the masquerader for a protocol name used in configuration.
func MasqueraderByName(name string, opts ...Option) (Masquerader, bool) {
	f, ok := FactoryByName(name, opts...)
	if !ok {
		return nil, false
	}
	return f.Masquerader(), true
}
