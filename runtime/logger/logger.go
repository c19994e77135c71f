// Package logger provides structured logging for the media and voice runtime.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Media resolution and blob handle lifecycle logging
//   - Voice session events (listening, speaking, errors)
//   - Contextual logging with session and request tracing
//   - Per-module level control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger

	logOutput io.Writer = os.Stderr

	// customHandler is set by SetLogger and survives Configure calls.
	customHandler slog.Handler
	mu            sync.Mutex
)

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		level = ParseLevel(envLevel)
	}
	DefaultLogger = slog.New(NewContextHandler(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	})))
}

// ParseLevel converts a level name into a slog.Level.
// Unknown names map to info. "trace" maps to debug.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	if customHandler != nil {
		return
	}
	DefaultLogger = slog.New(NewContextHandler(slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	})))
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// SetOutput redirects log output. Mostly useful in tests.
// Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	if w == nil {
		w = os.Stderr
	}
	logOutput = w
	mu.Unlock()
	SetLevel(slog.LevelInfo)
}

// SetLogger replaces the global logger with a caller-provided one.
// Subsequent Configure and SetLevel calls keep it. Passing nil resets to defaults.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	if l == nil {
		customHandler = nil
		mu.Unlock()
		SetLevel(slog.LevelInfo)
		return
	}
	customHandler = l.Handler()
	DefaultLogger = l
	mu.Unlock()
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// MediaResolved logs the outcome of a media resolution at debug level.
// The reference itself is never logged in full since data URIs can be megabytes.
func MediaResolved(ctx context.Context, kind, class string, inputLen, outputLen int, attrs ...any) {
	if !DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	allAttrs := make([]any, 0, 8+len(attrs))
	allAttrs = append(allAttrs,
		"kind", kind,
		"class", class,
		"input_len", inputLen,
		"output_len", outputLen,
	)
	allAttrs = append(allAttrs, attrs...)
	DebugContext(ctx, "media resolved", allAttrs...)
}

// BlobEvent logs a blob handle lifecycle event (created, retained, revoked).
func BlobEvent(ctx context.Context, event, ref, mimeType string, size int, attrs ...any) {
	allAttrs := make([]any, 0, 8+len(attrs))
	allAttrs = append(allAttrs,
		"event", event,
		"ref", ref,
		"mime_type", mimeType,
		"size", size,
	)
	allAttrs = append(allAttrs, attrs...)
	DebugContext(ctx, "blob handle", allAttrs...)
}

// VoiceEvent logs a voice session transition.
func VoiceEvent(direction, event string, attrs ...any) {
	allAttrs := make([]any, 0, 4+len(attrs))
	allAttrs = append(allAttrs,
		"direction", direction,
		"event", event,
	)
	allAttrs = append(allAttrs, attrs...)
	Debug("voice", allAttrs...)
}

// Truncate shortens s for logging, keeping the head and noting the original length.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
