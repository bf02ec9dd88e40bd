package masquerade

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

const jsonComponent = "CORES"

type jsonEnvelope struct {
	Component string  `json:"component"`
	BodyText  *string `json:"bodyText,omitempty"`
	BodyBytes []byte  `json:"bodyBytes,omitempty"`
}

// JSONMasquerader disguises packages as JSON objects:
//
//	{"component":"CORES","bodyText":"..."}     when the bytes are valid UTF-8
//	{"component":"CORES","bodyBytes":"<b64>"}  otherwise
type JSONMasquerader struct {
	config
}

func NewJSONMasquerader(opts ...Option) *JSONMasquerader {
	return &JSONMasquerader{config: newConfig(opts)}
}

func (m *JSONMasquerader) Name() string {
	return "json"
}

func (m *JSONMasquerader) Recognizes(data []byte) bool {
	return len(data) > 0 && data[0] == '{'
}

func (m *JSONMasquerader) Mask(data []byte) ([]byte, error) {
	if len(data) > m.maxSize {
		return nil, TooLargeError{Size: len(data), Max: m.maxSize}
	}
	env := jsonEnvelope{Component: jsonComponent}
	if utf8.Valid(data) {
		text := string(data)
		env.BodyText = &text
	} else {
		env.BodyBytes = data
	}
	return json.Marshal(&env)
}

func (m *JSONMasquerader) TryUnmask(data []byte) (UnmaskedChunk, error) {
	if !m.Recognizes(data) {
		return UnmaskedChunk{}, MalformedError{Reason: "not a json object"}
	}
	end, err := m.newScanner().scan(data)
	if err != nil {
		return UnmaskedChunk{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(data[:end]))
	var env jsonEnvelope
	if err := dec.Decode(&env); err != nil {
		return UnmaskedChunk{}, MalformedError{Reason: err.Error()}
	}
	if env.Component != jsonComponent {
		return UnmaskedChunk{}, MalformedError{Reason: "unexpected component " + env.Component}
	}
	var body []byte
	switch {
	case env.BodyBytes != nil:
		body = env.BodyBytes
	case env.BodyText != nil:
		body = []byte(*env.BodyText)
	default:
		return UnmaskedChunk{}, MalformedError{Reason: "missing body"}
	}
	if len(body) > m.maxSize {
		return UnmaskedChunk{}, TooLargeError{Size: len(body), Max: m.maxSize}
	}
	return UnmaskedChunk{Data: body, Consumed: end}, nil
}

// maxWireSize bounds how much of an unfinished object is worth buffering.
// Escaped text can take up to six bytes per input byte.
func (m *JSONMasquerader) maxWireSize() int {
	return 6*m.maxSize + 64
}
