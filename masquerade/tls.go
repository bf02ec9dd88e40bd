package masquerade

import "encoding/binary"

const (
	tlsRecordApplicationData = 0x17
	tlsVersionMajor          = 0x03
	tlsVersionMinor          = 0x03 // TLS 1.2 on the record layer, as TLS 1.3 also sends
	tlsHeaderSize            = 5
	tlsMaxRecordSize         = 16384
	tlsLengthSize            = 4
)

// TLSMasquerader disguises packages as a run of TLS application data records.
// The record contents are a 4 byte big endian length followed by the package,
// split across as many records as needed.
type TLSMasquerader struct {
	config
}

func NewTLSMasquerader(opts ...Option) *TLSMasquerader {
	return &TLSMasquerader{config: newConfig(opts)}
}

func (m *TLSMasquerader) Name() string {
	return "tls"
}

func (m *TLSMasquerader) Recognizes(data []byte) bool {
	return recognizesTLS(data)
}

func recognizesTLS(data []byte) bool {
	if len(data) == 0 || data[0] != tlsRecordApplicationData {
		return false
	}
	if len(data) > 1 && data[1] != tlsVersionMajor {
		return false
	}
	if len(data) > 2 && data[2] != tlsVersionMinor {
		return false
	}
	return true
}

func (m *TLSMasquerader) Mask(data []byte) ([]byte, error) {
	if len(data) > m.maxSize {
		return nil, TooLargeError{Size: len(data), Max: m.maxSize}
	}
	content := make([]byte, tlsLengthSize, tlsLengthSize+len(data))
	binary.BigEndian.PutUint32(content, uint32(len(data)))
	content = append(content, data...)
	records := (len(content) + tlsMaxRecordSize - 1) / tlsMaxRecordSize
	out := make([]byte, 0, len(content)+records*tlsHeaderSize)
	for len(content) > 0 {
		size := len(content)
		if size > tlsMaxRecordSize {
			size = tlsMaxRecordSize
		}
		out = append(out, tlsRecordApplicationData, tlsVersionMajor, tlsVersionMinor, 0, 0)
		binary.BigEndian.PutUint16(out[len(out)-2:], uint16(size))
		out = append(out, content[:size]...)
		content = content[size:]
	}
	return out, nil
}

func (m *TLSMasquerader) TryUnmask(data []byte) (UnmaskedChunk, error) {
	end, err := m.newScanner().scan(data)
	if err != nil {
		return UnmaskedChunk{}, err
	}
	content := make([]byte, 0, end)
	for rest := data[:end]; len(rest) > 0; {
		size := int(binary.BigEndian.Uint16(rest[3:5]))
		content = append(content, rest[tlsHeaderSize:tlsHeaderSize+size]...)
		rest = rest[tlsHeaderSize+size:]
	}
	return UnmaskedChunk{Data: content[tlsLengthSize:], Consumed: end}, nil
}
