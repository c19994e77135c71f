package config

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// AnnotationRequires holds a semver constraint the running binary must
// satisfy, e.g. ">= 0.3.0".
const AnnotationRequires = "studio.jari57.dev/requires"

// MediaRuntime is the K8s-style manifest that configures the media runtime:
// resolution policies, the blob store, voice defaults and the HTTP API.
//
//	apiVersion: studio.jari57.dev/v1alpha1
//	kind: MediaRuntime
//	metadata:
//	  name: local
//	spec:
//	  media:
//	    origin: studio
//	  blobStore:
//	    type: memory
type MediaRuntime struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Spec              `yaml:"spec"`
}

// Spec is the body of a MediaRuntime manifest.
type Spec struct {
	Logging   LoggingConfigSpec `yaml:"logging,omitempty"`
	Media     MediaSpec         `yaml:"media,omitempty"`
	BlobStore BlobStoreSpec     `yaml:"blobStore,omitempty"`
	Voice     VoiceSpec         `yaml:"voice,omitempty"`
	Server    ServerSpec        `yaml:"server,omitempty"`
	Tracing   TracingSpec       `yaml:"tracing,omitempty"`
}

// MediaSpec configures payload resolution.
type MediaSpec struct {
	// Origin is the origin segment of blob handles.
	Origin string `yaml:"origin,omitempty"`

	// Policies overrides per-kind rules, keyed by image, audio or video.
	Policies map[string]PolicySpec `yaml:"policies,omitempty"`
}

// PolicySpec overrides one kind's resolution rules. Unset fields keep the
// kind's default; an explicit zero disables the rule.
type PolicySpec struct {
	DefaultMIME  *string `yaml:"defaultMIME,omitempty"`
	InlineLimit  *int    `yaml:"inlineLimit,omitempty"`
	RawMinLength *int    `yaml:"rawMinLength,omitempty"`
}

// Blob store types.
const (
	BlobStoreMemory = "memory"
	BlobStoreRedis  = "redis"
)

// BlobStoreSpec selects where materialized objects live.
type BlobStoreSpec struct {
	Type     string `yaml:"type,omitempty"`
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	// TTL is a Go duration such as "1h". Empty keeps objects until revoked.
	TTL string `yaml:"ttl,omitempty"`
}

// VoiceSpec holds voice I/O defaults.
type VoiceSpec struct {
	Language         string `yaml:"language,omitempty"`
	Gender           string `yaml:"gender,omitempty"`
	Region           string `yaml:"region,omitempty"`
	VoiceLoadTimeout string `yaml:"voiceLoadTimeout,omitempty"`
	ListenTimeout    string `yaml:"listenTimeout,omitempty"`
}

// ServerSpec configures the HTTP API. AllowedOrigins lists origins accepted by
// the voice bridge; empty accepts same-origin requests only.
type ServerSpec struct {
	Addr            string         `yaml:"addr,omitempty"`
	MetricsAddr     string         `yaml:"metricsAddr,omitempty"`
	ShutdownTimeout string         `yaml:"shutdownTimeout,omitempty"`
	MaxBodyBytes    int64          `yaml:"maxBodyBytes,omitempty"`
	AllowedOrigins  []string       `yaml:"allowedOrigins,omitempty"`
	RateLimit       *RateLimitSpec `yaml:"rateLimit,omitempty"`
}

// RateLimitSpec throttles the resolve endpoint with a token bucket.
type RateLimitSpec struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst,omitempty"`
}

// TracingSpec enables OTLP/HTTP span export. An empty endpoint disables it.
type TracingSpec struct {
	Endpoint    string            `yaml:"endpoint,omitempty"`
	ServiceName string            `yaml:"serviceName,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
}

// Defaults.
const (
	DefaultServerAddr      = ":8080"
	DefaultShutdownTimeout = "10s"
	DefaultServiceName     = "studio-media"
	DefaultMaxBodyBytes    = 32 << 20
)
