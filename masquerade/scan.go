package masquerade

import "encoding/binary"

// boundaryFinder is implemented by masqueraders that can locate the end of a
// frame incrementally. The Discriminator keeps one scanner per head frame and
// only calls TryUnmask once the whole frame is buffered.
type boundaryFinder interface {
	Masquerader
	newScanner() frameScanner
}

type frameScanner interface {
	// scan continues over data, which extends the data passed to earlier calls,
	// and returns the length of the first frame once all of it is present.
	// It returns IncompleteError while the frame is still arriving.
	scan(data []byte) (int, error)
}

type jsonScanner struct {
	maxWire  int
	off      int
	depth    int
	inString bool
	escaped  bool
}

func (m *JSONMasquerader) newScanner() frameScanner {
	return &jsonScanner{maxWire: m.maxWireSize()}
}

func (s *jsonScanner) scan(data []byte) (int, error) {
	for ; s.off < len(data); s.off++ {
		c := data[s.off]
		switch {
		case s.escaped:
			s.escaped = false
		case s.inString:
			switch c {
			case '\\':
				s.escaped = true
			case '"':
				s.inString = false
			}
		case c == '"':
			s.inString = true
		case c == '{' || c == '[':
			s.depth++
		case c == '}' || c == ']':
			s.depth--
			if s.depth <= 0 {
				s.off++
				return s.off, nil
			}
		}
	}
	if s.off > s.maxWire {
		return 0, TooLargeError{Size: s.off, Max: s.maxWire}
	}
	return 0, IncompleteError{}
}

type tlsScanner struct {
	maxSize int
	off     int // end of the last whole record
	content int
	length  [tlsLengthSize]byte
	want    int
}

func (m *TLSMasquerader) newScanner() frameScanner {
	return &tlsScanner{maxSize: m.maxSize, want: -1}
}

func (s *tlsScanner) scan(data []byte) (int, error) {
	for {
		rest := data[s.off:]
		if len(rest) < tlsHeaderSize {
			if len(rest) > 0 && !recognizesTLS(rest) {
				return 0, MalformedError{Reason: "not a tls application data record"}
			}
			return 0, IncompleteError{}
		}
		if !recognizesTLS(rest[:3]) {
			return 0, MalformedError{Reason: "not a tls application data record"}
		}
		size := int(binary.BigEndian.Uint16(rest[3:5]))
		if size == 0 || size > tlsMaxRecordSize {
			return 0, MalformedError{Reason: "bad tls record length"}
		}
		if len(rest) < tlsHeaderSize+size {
			return 0, IncompleteError{}
		}
		body := rest[tlsHeaderSize : tlsHeaderSize+size]
		for idx := 0; s.content+idx < tlsLengthSize && idx < len(body); idx++ {
			s.length[s.content+idx] = body[idx]
		}
		s.content += size
		s.off += tlsHeaderSize + size
		if s.want < 0 && s.content >= tlsLengthSize {
			length := binary.BigEndian.Uint32(s.length[:])
			if uint64(length) > uint64(s.maxSize) {
				return 0, TooLargeError{Size: int(length), Max: s.maxSize}
			}
			s.want = tlsLengthSize + int(length)
		}
		switch {
		case s.want < 0 || s.content < s.want:
			continue
		case s.content > s.want:
			return 0, MalformedError{Reason: "tls records overrun package length"}
		default:
			return s.off, nil
		}
	}
}
