// Package errors provides the contextual error type shared by the runtime,
// the HTTP API and the CLI.
//
// A ContextualError records which component failed, during which operation,
// and optionally an HTTP status to surface it with:
//
//	err := errors.New("blob", "Lookup", blob.ErrNotFound).WithStatusCode(http.StatusNotFound)
//	errors.StatusCode(err, http.StatusInternalServerError) // 404
package errors

import (
	stderrors "errors"
	"fmt"
)

// ContextualError is a structured error carrying the component and operation
// where it occurred.
type ContextualError struct {
	// Component identifies the package that produced the error (e.g. "blob", "voice", "config").
	Component string

	// Operation describes what was being done when the error occurred.
	Operation string

	// StatusCode is an optional HTTP status used by the API layer.
	StatusCode int

	// Details holds optional structured metadata about the error.
	Details map[string]any

	// Cause is the underlying error, if any.
	Cause error
}

// New creates a ContextualError with the given component, operation, and cause.
func New(component, operation string, cause error) *ContextualError {
	return &ContextualError{
		Component: component,
		Operation: operation,
		Cause:     cause,
	}
}

// Error returns "[component] operation (status N): cause".
func (e *ContextualError) Error() string {
	base := fmt.Sprintf("[%s] %s", e.Component, e.Operation)
	if e.StatusCode != 0 {
		base += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		base += ": " + e.Cause.Error()
	}
	return base
}

// Unwrap returns the underlying cause.
func (e *ContextualError) Unwrap() error {
	return e.Cause
}

// WithStatusCode sets the status code and returns e.
func (e *ContextualError) WithStatusCode(code int) *ContextualError {
	e.StatusCode = code
	return e
}

// WithDetail adds one key to Details and returns e.
func (e *ContextualError) WithDetail(key string, value any) *ContextualError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// StatusCode returns the status of the outermost ContextualError in err's
// chain that has one, or fallback.
func StatusCode(err error, fallback int) int {
	for err != nil {
		var ce *ContextualError
		if !stderrors.As(err, &ce) {
			break
		}
		if ce.StatusCode != 0 {
			return ce.StatusCode
		}
		err = ce.Cause
	}
	return fallback
}
