package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys picked up by ContextHandler and added to every record.
const (
	ContextKeySessionID     contextKey = "session_id"
	ContextKeyRequestID     contextKey = "request_id"
	ContextKeyMediaKind     contextKey = "media_kind"
	ContextKeyCorrelationID contextKey = "correlation_id"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyRequestID,
	ContextKeyMediaKind,
	ContextKeyCorrelationID,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithMediaKind returns a new context tagged with the media kind being resolved.
func WithMediaKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, ContextKeyMediaKind, kind)
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// Fields extracts all known logging fields from ctx.
func Fields(ctx context.Context) map[string]string {
	fields := make(map[string]string, len(allContextKeys))
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok && s != "" {
			fields[string(key)] = s
		}
	}
	return fields
}
