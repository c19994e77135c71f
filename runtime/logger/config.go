package logger

import (
	"log/slog"
	"strings"
	"sync"
)

// ModuleConfig manages per-module logging configuration.
// Module names are hierarchical ("runtime.voice" overrides "runtime").
type ModuleConfig struct {
	defaultLevel slog.Level
	modules      map[string]slog.Level
	mu           sync.RWMutex
}

// NewModuleConfig creates a new ModuleConfig with the given default level.
func NewModuleConfig(defaultLevel slog.Level) *ModuleConfig {
	return &ModuleConfig{
		defaultLevel: defaultLevel,
		modules:      make(map[string]slog.Level),
	}
}

// SetModuleLevel sets the log level for a specific module.
func (m *ModuleConfig) SetModuleLevel(module string, level slog.Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modules[module] = level
}

// LevelFor returns the log level for the given module, walking up the
// dot-separated hierarchy until a configured level is found.
func (m *ModuleConfig) LevelFor(module string) slog.Level {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for {
		if level, ok := m.modules[module]; ok {
			return level
		}
		lastDot := strings.LastIndex(module, ".")
		if lastDot == -1 {
			return m.defaultLevel
		}
		module = module[:lastDot]
	}
}

func (m *ModuleConfig) hasModules() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modules) > 0
}

// Log format constants
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config is the logging section of the runtime configuration.
// It mirrors config.LoggingConfigSpec to avoid an import cycle.
type Config struct {
	DefaultLevel string
	Format       string
	CommonFields map[string]string
	Modules      map[string]string
}

// Configure applies cfg to the global logger.
// A logger installed with SetLogger is preserved.
func Configure(cfg *Config) {
	if cfg == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	if customHandler != nil {
		return
	}

	defaultLevel := ParseLevel(cfg.DefaultLevel)

	commonFields := make([]slog.Attr, 0, len(cfg.CommonFields))
	for k, v := range cfg.CommonFields {
		commonFields = append(commonFields, slog.String(k, v))
	}

	modules := NewModuleConfig(defaultLevel)
	for name, level := range cfg.Modules {
		modules.SetModuleLevel(name, ParseLevel(level))
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if !modules.hasModules() {
		opts.Level = defaultLevel
	}

	var base slog.Handler
	if cfg.Format == FormatJSON {
		base = slog.NewJSONHandler(logOutput, opts)
	} else {
		base = slog.NewTextHandler(logOutput, opts)
	}

	var handler slog.Handler
	if modules.hasModules() {
		handler = NewModuleHandler(base, modules, commonFields...)
	} else {
		handler = NewContextHandler(base, commonFields...)
	}
	DefaultLogger = slog.New(handler)
}
