// Package media normalizes the media payloads returned by generation services
// into a single reference a player or image element can consume.
//
// Payloads arrive in many shapes: plain URLs, data URIs, raw base64 with no
// prefix, wrapper objects such as {"url": ...} or {"b64_json": ...}, and
// arrays of any of those. Resolve reduces all of them to a Reference. Large
// inline data URIs are materialized into "blob:" handles, which the caller
// owns and must revoke.
package media

import (
	"fmt"
	"strings"
)

// Kind is the declared type of media being resolved.
type Kind string

// Media kinds.
const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindImage, KindAudio, KindVideo}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImage, KindAudio, KindVideo:
		return k, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// MIME types synthesized for unprefixed base64.
const (
	MIMETypeImagePNG = "image/png"
	MIMETypeAudioMP3 = "audio/mpeg"
)

// Default thresholds, in characters.
const (
	DefaultImageInlineLimit = 500
	DefaultImageRawMinLen   = 500
	DefaultAudioInlineLimit = 100_000
	DefaultAudioRawMinLen   = 100
	DefaultVideoInlineLimit = 100_000
)

// KindPolicy holds the per-kind resolution rules.
type KindPolicy struct {
	// DefaultMIME labels base64 that arrives without a data URI prefix.
	// Empty disables synthesis, leaving raw strings untouched.
	DefaultMIME string

	// InlineLimit is the longest data URI returned as-is. Longer ones are
	// materialized into blob handles. Zero disables materialization.
	InlineLimit int

	// RawMinLength is the length a prefix-less string must exceed to be
	// treated as base64. Zero disables the heuristic.
	RawMinLength int
}

// DefaultPolicies returns the stock policy for each kind.
func DefaultPolicies() map[Kind]KindPolicy {
	return map[Kind]KindPolicy{
		KindImage: {
			DefaultMIME:  MIMETypeImagePNG,
			InlineLimit:  DefaultImageInlineLimit,
			RawMinLength: DefaultImageRawMinLen,
		},
		KindAudio: {
			DefaultMIME:  MIMETypeAudioMP3,
			InlineLimit:  DefaultAudioInlineLimit,
			RawMinLength: DefaultAudioRawMinLen,
		},
		KindVideo: {
			InlineLimit: DefaultVideoInlineLimit,
		},
	}
}
