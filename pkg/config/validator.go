package config

import (
	"time"

	"github.com/Jari57/studio-agents-sub002/runtime/media"
)

// Validate checks what the schema cannot: duration syntax, kind names and
// logging levels for manifests built in code.
func (s *Spec) Validate() error {
	if err := s.Logging.Validate(); err != nil {
		return err
	}
	for name := range s.Media.Policies {
		if _, err := media.ParseKind(name); err != nil {
			return &ValidationError{Field: "media.policies", Message: "unknown media kind", Value: name}
		}
	}
	if s.BlobStore.Type == BlobStoreRedis && s.BlobStore.Addr == "" {
		return &ValidationError{Field: "blobStore.addr", Message: "required for redis store"}
	}
	if s.BlobStore.Type != "" && s.BlobStore.Type != BlobStoreMemory && s.BlobStore.Type != BlobStoreRedis {
		return &ValidationError{Field: "blobStore.type", Message: "must be one of: memory, redis", Value: s.BlobStore.Type}
	}

	durations := []struct {
		field string
		value string
	}{
		{"blobStore.ttl", s.BlobStore.TTL},
		{"voice.voiceLoadTimeout", s.Voice.VoiceLoadTimeout},
		{"voice.listenTimeout", s.Voice.ListenTimeout},
		{"server.shutdownTimeout", s.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.value); err != nil {
			return &ValidationError{Field: d.field, Message: "must be a duration such as 500ms or 1h", Value: d.value}
		}
	}
	return nil
}

// parseDuration parses a Go duration. Empty is zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, &ValidationError{Field: "duration", Message: "must not be negative", Value: s}
	}
	return d, nil
}
