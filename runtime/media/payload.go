package media

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the closed set of shapes a generation service may return.
// The concrete types are Text, Wrapper, Sequence and Unusable; a nil
// Payload means nothing was returned.
type Payload interface {
	isPayload()
}

// Text is a plain string: a URL, data URI, blob handle, raw base64 or path.
type Text string

// Wrapper is an object carrying the media under one of the recognized keys.
type Wrapper struct {
	URL     Payload // "url"
	Audio   Payload // "audio"
	Video   Payload // "video"
	B64JSON Payload // "b64_json"
}

// Sequence is an ordered list; only its first element is considered.
type Sequence []Payload

// Unusable is any other value. It always resolves to an empty reference.
type Unusable struct {
	// Type names the Go type that was rejected, for diagnostics.
	Type string
}

func (Text) isPayload()     {}
func (Wrapper) isPayload()  {}
func (Sequence) isPayload() {}
func (Unusable) isPayload() {}

// Wrapper keys.
const (
	keyURL     = "url"
	keyAudio   = "audio"
	keyVideo   = "video"
	keyB64JSON = "b64_json"
)

// FromAny converts an untyped value, typically decoded JSON, into a Payload.
func FromAny(v any) Payload {
	switch t := v.(type) {
	case nil:
		return nil
	case Payload:
		return t
	case string:
		return Text(t)
	case []string:
		seq := make(Sequence, len(t))
		for i, s := range t {
			seq[i] = Text(s)
		}
		return seq
	case []any:
		seq := make(Sequence, len(t))
		for i, e := range t {
			seq[i] = FromAny(e)
		}
		return seq
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return wrapperFromMap(m)
	case map[string]any:
		return wrapperFromMap(t)
	default:
		return Unusable{Type: fmt.Sprintf("%T", v)}
	}
}

func wrapperFromMap(m map[string]any) Payload {
	var w Wrapper
	found := false
	for key, dst := range map[string]*Payload{
		keyURL:     &w.URL,
		keyAudio:   &w.Audio,
		keyVideo:   &w.Video,
		keyB64JSON: &w.B64JSON,
	} {
		if v, ok := m[key]; ok {
			*dst = FromAny(v)
			found = true
		}
	}
	if !found {
		return Unusable{Type: "object"}
	}
	return w
}

// ParsePayload decodes JSON into a Payload. Empty input and JSON null
// yield a nil Payload.
func ParsePayload(data []byte) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return FromAny(v), nil
}
