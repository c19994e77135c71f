package config

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
	"github.com/Jari57/studio-agents-sub002/runtime/telemetry"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

// MediaPolicies merges the manifest's overrides onto media.DefaultPolicies.
func (s *MediaSpec) MediaPolicies() (map[media.Kind]media.KindPolicy, error) {
	policies := media.DefaultPolicies()
	for name, override := range s.Policies {
		kind, err := media.ParseKind(name)
		if err != nil {
			return nil, &ValidationError{Field: "media.policies", Message: "unknown media kind", Value: name}
		}
		p := policies[kind]
		if override.DefaultMIME != nil {
			p.DefaultMIME = *override.DefaultMIME
		}
		if override.InlineLimit != nil {
			p.InlineLimit = *override.InlineLimit
		}
		if override.RawMinLength != nil {
			p.RawMinLength = *override.RawMinLength
		}
		policies[kind] = p
	}
	return policies, nil
}

// OpenStore creates the configured object store. The caller closes it.
func (b *BlobStoreSpec) OpenStore() (blob.Store, error) {
	switch b.Type {
	case "", BlobStoreMemory:
		return blob.NewMemoryStore(), nil
	case BlobStoreRedis:
		ttl, err := parseDuration(b.TTL)
		if err != nil {
			return nil, &ValidationError{Field: "blobStore.ttl", Message: err.Error(), Value: b.TTL}
		}
		client := redis.NewClient(&redis.Options{
			Addr:     b.Addr,
			Password: b.Password,
			DB:       b.DB,
		})
		opts := []blob.RedisOption{blob.WithTTL(ttl)}
		if b.Prefix != "" {
			opts = append(opts, blob.WithPrefix(b.Prefix))
		}
		return blob.NewRedisStore(client, opts...), nil
	default:
		return nil, &ValidationError{Field: "blobStore.type", Message: "must be one of: memory, redis", Value: b.Type}
	}
}

// RegistryOptions returns blob registry options for the media origin and
// store. Extra options, such as listeners, are appended.
func (s *Spec) RegistryOptions(store blob.Store, extra ...blob.RegistryOption) []blob.RegistryOption {
	opts := []blob.RegistryOption{blob.WithStore(store)}
	if s.Media.Origin != "" {
		opts = append(opts, blob.WithOrigin(s.Media.Origin))
	}
	return append(opts, extra...)
}

// VoiceConfig converts the voice section. Callbacks are left for the caller.
func (v *VoiceSpec) VoiceConfig() (voice.Config, error) {
	load, err := parseDuration(v.VoiceLoadTimeout)
	if err != nil {
		return voice.Config{}, &ValidationError{Field: "voice.voiceLoadTimeout", Message: err.Error(), Value: v.VoiceLoadTimeout}
	}
	listen, err := parseDuration(v.ListenTimeout)
	if err != nil {
		return voice.Config{}, &ValidationError{Field: "voice.listenTimeout", Message: err.Error(), Value: v.ListenTimeout}
	}
	return voice.Config{
		Language:         v.Language,
		VoiceGender:      v.Gender,
		VoiceRegion:      v.Region,
		VoiceLoadTimeout: load,
		ListenTimeout:    listen,
	}, nil
}

// ShutdownDuration returns the graceful shutdown bound.
func (s *ServerSpec) ShutdownDuration() time.Duration {
	d, err := parseDuration(s.ShutdownTimeout)
	if err != nil || d == 0 {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

// TracingConfig converts the tracing section. The manifest name becomes the
// runtime name on exported spans.
func (m *MediaRuntime) TracingConfig() telemetry.Config {
	return telemetry.Config{
		Endpoint:    m.Spec.Tracing.Endpoint,
		ServiceName: m.Spec.Tracing.ServiceName,
		RuntimeName: m.Metadata.Name,
		Attributes:  m.Spec.Tracing.Attributes,
	}
}
