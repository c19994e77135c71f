package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Jari57/studio-agents-sub002/runtime/version"
)

// LoadConfig reads, schema-validates and parses a MediaRuntime manifest.
func LoadConfig(filename string) (*MediaRuntime, error) {
	data, err := os.ReadFile(filepath.Clean(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Parse validates and parses manifest bytes. Defaults are applied to the
// returned manifest.
func Parse(data []byte) (*MediaRuntime, error) {
	// Step 1: JSON Schema validation (structure, types, enums, kind value)
	if err := ValidateMediaRuntime(data); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var manifest MediaRuntime
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Step 2: checks the schema cannot express
	if err := manifest.Spec.Validate(); err != nil {
		return nil, err
	}
	if err := manifest.checkRuntimeVersion(); err != nil {
		return nil, err
	}

	manifest.Spec.applyDefaults()
	return &manifest, nil
}

// Default returns a manifest equivalent to an empty spec.
func Default() *MediaRuntime {
	m := &MediaRuntime{
		APIVersion: APIVersion,
		Kind:       KindMediaRuntime,
	}
	m.Spec.applyDefaults()
	return m
}

func (s *Spec) applyDefaults() {
	defaults := DefaultLoggingConfig()
	if s.Logging.DefaultLevel == "" {
		s.Logging.DefaultLevel = defaults.DefaultLevel
	}
	if s.Logging.Format == "" {
		s.Logging.Format = defaults.Format
	}
	if s.BlobStore.Type == "" {
		s.BlobStore.Type = BlobStoreMemory
	}
	if s.Server.Addr == "" {
		s.Server.Addr = DefaultServerAddr
	}
	if s.Server.ShutdownTimeout == "" {
		s.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.Server.MaxBodyBytes == 0 {
		s.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.Server.RateLimit != nil && s.Server.RateLimit.Burst == 0 {
		s.Server.RateLimit.Burst = int(math.Ceil(s.Server.RateLimit.RequestsPerSecond))
	}
	if s.Tracing.ServiceName == "" {
		s.Tracing.ServiceName = DefaultServiceName
	}
}

// checkRuntimeVersion enforces the AnnotationRequires constraint.
func (m *MediaRuntime) checkRuntimeVersion() error {
	constraint, ok := m.Metadata.Annotations[AnnotationRequires]
	if !ok {
		return nil
	}
	satisfied, err := version.Satisfies(constraint)
	if err != nil {
		return &ValidationError{Field: "metadata.annotations", Message: err.Error(), Value: constraint}
	}
	if !satisfied {
		return &ValidationError{
			Field:   "metadata.annotations",
			Message: "runtime version " + version.GetVersion() + " does not satisfy constraint",
			Value:   constraint,
		}
	}
	return nil
}
