package masquerade

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMasqueraders() []Masquerader {
	return []Masquerader{NewJSONMasquerader(), NewTLSMasquerader()}
}

func randomInputs() [][]byte {
	rng := rand.New(rand.NewSource(3))
	inputs := [][]byte{
		nil,
		{},
		[]byte("Booga booga!"),
		[]byte("{\"component\":\"CORES\"}"),
		[]byte("<script>& </script>"),
		{0xff, 0xfe, 0x00, 0x17, 0x03, 0x03},
	}
	for _, size := range []int{1, 2, 3, 100, 16379, 16380, 16381, 40000} {
		bs := make([]byte, size)
		rng.Read(bs)
		inputs = append(inputs, bs)
	}
	return inputs
}

func TestRoundTrip(t *testing.T) {
	for _, m := range testMasqueraders() {
		for _, in := range randomInputs() {
			wire, err := m.Mask(in)
			require.NoError(t, err, m.Name())
			out, err := Unmask(m, wire)
			require.NoError(t, err, m.Name())
			require.Equal(t, len(in), len(out), m.Name())
			if len(in) > 0 {
				require.Equal(t, in, out, m.Name())
			}
		}
	}
}

func TestTooLarge(t *testing.T) {
	for _, m := range []Masquerader{NewJSONMasquerader(WithMaxSize(8)), NewTLSMasquerader(WithMaxSize(8))} {
		_, err := m.Mask(make([]byte, 9))
		require.ErrorAs(t, err, new(TooLargeError), m.Name())
		_, err = m.Mask(make([]byte, 8))
		require.NoError(t, err, m.Name())
	}
	big, err := NewTLSMasquerader().Mask(make([]byte, 100))
	require.NoError(t, err)
	_, err = NewTLSMasquerader(WithMaxSize(10)).TryUnmask(big)
	require.ErrorAs(t, err, new(TooLargeError))
}

func TestIncomplete(t *testing.T) {
	for _, m := range testMasqueraders() {
		wire, err := m.Mask([]byte("Booga booga!"))
		require.NoError(t, err)
		for idx := 1; idx < len(wire); idx++ {
			_, err := m.TryUnmask(wire[:idx])
			require.ErrorAs(t, err, new(IncompleteError), "%s at %d", m.Name(), idx)
		}
	}
}

func TestMalformedNeverPanics(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, m := range testMasqueraders() {
		for iter := 0; iter < 500; iter++ {
			bs := make([]byte, rng.Intn(40))
			rng.Read(bs)
			if iter%2 == 0 && len(bs) > 0 {
				bs[0] = "{\x17"[iter%4/2]
			}
			require.NotPanics(t, func() {
				_, _ = m.TryUnmask(bs)
			})
		}
	}
	j := NewJSONMasquerader()
	for _, bad := range []string{
		`{"component":"HTTP","bodyText":"x"}`,
		`{"component":"CORES"}`,
		`{"component":"CORES","bodyBytes":"!!!"}`,
		`{]`,
		`not json`,
	} {
		_, err := Unmask(j, []byte(bad))
		require.ErrorAs(t, err, new(MalformedError), bad)
	}
	tl := NewTLSMasquerader()
	for _, bad := range [][]byte{
		{0x16, 0x03, 0x03, 0x00, 0x01, 0x00},
		{0x17, 0x03, 0x01, 0x00, 0x01, 0x00},
		{0x17, 0x03, 0x03, 0x00, 0x00},
		{0x17, 0x03, 0x03, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00},
	} {
		_, err := Unmask(tl, bad)
		require.ErrorAs(t, err, new(MalformedError), "%x", bad)
	}
}

func TestUnmaskTrailingData(t *testing.T) {
	m := NewJSONMasquerader()
	wire, err := m.Mask([]byte("a"))
	require.NoError(t, err)
	_, err = Unmask(m, append(wire, wire...))
	require.ErrorAs(t, err, new(MalformedError))
}

func TestFrameSplitting(t *testing.T) {
	payload := []byte("serious web request aaaaaaaahhhhhhhhhhhhhhhhhhhhhh")
	for _, f := range []DiscriminatorFactory{NewJSONDiscriminatorFactory(), NewTLSDiscriminatorFactory()} {
		wire, err := f.Masquerader().Mask(payload)
		require.NoError(t, err)
		whole := f.Make()
		whole.AddData(wire)
		expected := whole.TakeFrames()
		require.Len(t, expected, 1)
		for split := 0; split <= len(wire); split++ {
			d := f.Make()
			d.AddData(wire[:split])
			frames := d.TakeFrames()
			d.AddData(wire[split:])
			frames = append(frames, d.TakeFrames()...)
			require.Equal(t, expected, frames, "%s split at %d", f.Name(), split)
			require.Equal(t, 0, d.Buffered())
		}
	}
}

func TestFrameSplittingMultiRecord(t *testing.T) {
	payload := make([]byte, 40000)
	rand.New(rand.NewSource(5)).Read(payload)
	f := NewTLSDiscriminatorFactory()
	wire, err := f.Masquerader().Mask(payload)
	require.NoError(t, err)
	for split := 0; split <= len(wire); split += 997 {
		d := f.Make()
		d.AddData(wire[:split])
		frames := d.TakeFrames()
		d.AddData(wire[split:])
		frames = append(frames, d.TakeFrames()...)
		require.Len(t, frames, 1)
		require.Equal(t, payload, frames[0].Data)
	}
}

type countingMasquerader struct {
	boundaryFinder
	calls   int
	scanned int
}

func (c *countingMasquerader) TryUnmask(data []byte) (UnmaskedChunk, error) {
	c.calls++
	c.scanned += len(data)
	return c.boundaryFinder.TryUnmask(data)
}

func (c *countingMasquerader) newScanner() frameScanner {
	return &countingScanner{frameScanner: c.boundaryFinder.newScanner(), owner: c}
}

type countingScanner struct {
	frameScanner
	owner *countingMasquerader
	seen  int
}

func (s *countingScanner) scan(data []byte) (int, error) {
	s.owner.scanned += len(data) - s.seen
	s.seen = len(data)
	return s.frameScanner.scan(data)
}

func TestSlowFrameIsScannedOnce(t *testing.T) {
	payload := make([]byte, 512*1024)
	rand.New(rand.NewSource(6)).Read(payload)
	for _, m := range []boundaryFinder{NewJSONMasquerader(), NewTLSMasquerader()} {
		wire, err := m.Mask(payload)
		require.NoError(t, err)
		counter := &countingMasquerader{boundaryFinder: m}
		d := NewDiscriminator(counter)
		var frames []Frame
		for rest := wire; len(rest) > 0; {
			n := 512
			if n > len(rest) {
				n = len(rest)
			}
			d.AddData(rest[:n])
			rest = rest[n:]
			frames = append(frames, d.TakeFrames()...)
		}
		require.Len(t, frames, 1, m.Name())
		require.Equal(t, payload, frames[0].Data, m.Name())
		require.Equal(t, 1, counter.calls, m.Name())
		require.LessOrEqual(t, counter.scanned, 2*len(wire), m.Name())
		require.Equal(t, 0, d.Buffered())
	}
}

func TestMultiplexedStream(t *testing.T) {
	factories := []DiscriminatorFactory{NewJSONDiscriminatorFactory(), NewTLSDiscriminatorFactory()}
	d := MakeDiscriminator(factories)
	var stream []byte
	var expected []Frame
	for idx := 0; idx < 10; idx++ {
		f := factories[idx%2]
		data := []byte{byte(idx), 0xff, byte(idx)}
		wire, err := f.Masquerader().Mask(data)
		require.NoError(t, err)
		stream = append(stream, wire...)
		expected = append(expected, Frame{Protocol: f.Name(), Data: data})
	}
	var frames []Frame
	for len(stream) > 0 {
		n := 7
		if n > len(stream) {
			n = len(stream)
		}
		d.AddData(stream[:n])
		stream = stream[n:]
		frames = append(frames, d.TakeFrames()...)
	}
	require.Equal(t, expected, frames)
}

func TestDiscriminatorResync(t *testing.T) {
	f := NewJSONDiscriminatorFactory()
	wire, err := f.Masquerader().Mask([]byte("hello"))
	require.NoError(t, err)
	d := f.Make()
	d.AddData([]byte("garbage\n"))
	d.AddData([]byte(`{"component":"HTTP","bodyText":"x"}`))
	d.AddData(wire)
	frames := d.TakeFrames()
	require.Len(t, frames, 1)
	require.Equal(t, []byte("hello"), frames[0].Data)
	require.Equal(t, 0, d.Buffered())
	require.NotZero(t, d.Dropped())
}

func TestFactoryByName(t *testing.T) {
	for _, name := range []string{"json", "tls"} {
		f, ok := FactoryByName(name)
		require.True(t, ok)
		require.Equal(t, name, f.Name())
		m, ok := MasqueraderByName(name)
		require.True(t, ok)
		require.Equal(t, name, m.Name())
	}
	_, ok := FactoryByName("http")
	require.False(t, ok)
}
