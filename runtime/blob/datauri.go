package blob

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// URI scheme prefixes recognized by the runtime.
const (
	SchemeData = "data:"
	SchemeBlob = "blob:"

	base64Param     = "base64"
	defaultDataMIME = "text/plain"
)

// ErrDecode is returned for malformed data URIs and base64 payloads.
var ErrDecode = errors.New("blob: decode failure")

// DataURI is a parsed RFC 2397 data URI.
type DataURI struct {
	// MIMEType is the media type, "text/plain" when the URI omits it.
	MIMEType string

	// Params holds the parameters between the media type and the payload,
	// excluding the trailing base64 marker.
	Params []string

	// Base64 reports whether the payload is base64-encoded.
	Base64 bool

	// Payload is everything after the first comma, untouched.
	Payload string
}

// HasScheme reports whether s starts with scheme, ignoring ASCII case.
func HasScheme(s, scheme string) bool {
	return len(s) >= len(scheme) && strings.EqualFold(s[:len(scheme)], scheme)
}

// ParseDataURI splits s into media type, parameters and payload.
// It does not decode the payload.
func ParseDataURI(s string) (DataURI, error) {
	if !HasScheme(s, SchemeData) {
		return DataURI{}, fmt.Errorf("%w: missing %q scheme", ErrDecode, SchemeData)
	}
	rest := s[len(SchemeData):]
	comma := strings.IndexByte(rest, ',')
	if comma == -1 {
		return DataURI{}, fmt.Errorf("%w: data URI has no payload separator", ErrDecode)
	}

	header, payload := rest[:comma], rest[comma+1:]
	parts := strings.Split(header, ";")

	uri := DataURI{
		MIMEType: strings.TrimSpace(parts[0]),
		Payload:  payload,
	}
	if uri.MIMEType == "" {
		uri.MIMEType = defaultDataMIME
	}

	params := parts[1:]
	if n := len(params); n > 0 && strings.EqualFold(strings.TrimSpace(params[n-1]), base64Param) {
		uri.Base64 = true
		params = params[:n-1]
	}
	if len(params) > 0 {
		uri.Params = params
	}
	return uri, nil
}

// Decode returns the raw bytes of a base64 data URI payload.
func (d DataURI) Decode() ([]byte, error) {
	if !d.Base64 {
		return nil, fmt.Errorf("%w: data URI payload is not base64-encoded", ErrDecode)
	}
	return DecodeBase64(d.Payload)
}

// String re-serializes the URI.
func (d DataURI) String() string {
	var b strings.Builder
	b.WriteString(SchemeData)
	b.WriteString(d.MIMEType)
	for _, p := range d.Params {
		b.WriteByte(';')
		b.WriteString(p)
	}
	if d.Base64 {
		b.WriteString(";" + base64Param)
	}
	b.WriteByte(',')
	b.WriteString(d.Payload)
	return b.String()
}

// FormatDataURI builds "data:<mime>;base64,<payload>" from an already encoded payload.
func FormatDataURI(mimeType, b64 string) string {
	return SchemeData + mimeType + ";" + base64Param + "," + b64
}

// DecodeBase64 decodes standard base64 the way browsers' atob does: ASCII
// whitespace is ignored and padding is optional. Any other character outside
// the alphabet is an error.
func DecodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\f', '\r':
			return -1
		}
		return r
	}, s)

	if len(clean)%4 == 0 {
		clean = strings.TrimSuffix(clean, "=")
		clean = strings.TrimSuffix(clean, "=")
	}
	if len(clean)%4 == 1 {
		return nil, fmt.Errorf("%w: invalid base64 length", ErrDecode)
	}

	data, err := base64.RawStdEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return data, nil
}
