package voice

import "errors"

// Common voice errors. They are delivered through Config.OnError and never
// returned from the IO methods.
var (
	// ErrUnsupported is reported when the engine lacks the requested direction.
	ErrUnsupported = errors.New("voice input not supported")

	// ErrPermissionDenied is reported when microphone access was refused.
	ErrPermissionDenied = errors.New("microphone access denied")

	// ErrNoInputDetected is reported when a session ended without speech.
	ErrNoInputDetected = errors.New("no speech detected")
)

// Recognition error codes reported by engines.
const (
	CodeNoSpeech          = "no-speech"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeAborted           = "aborted"

	// CodeStartFailed is used when Recognition.Start returns an error.
	CodeStartFailed = "start-failed"
)

// PlatformError carries an engine error code that has no dedicated sentinel.
type PlatformError struct {
	// Reason is the engine's error code, e.g. "network".
	Reason string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	if e.Cause != nil {
		return "voice error: " + e.Reason + ": " + e.Cause.Error()
	}
	return "voice error: " + e.Reason
}

// Unwrap returns the underlying error.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// ErrorFromCode maps an engine recognition error code to an error.
func ErrorFromCode(code string) error {
	switch code {
	case CodeNoSpeech:
		return ErrNoInputDetected
	case CodeNotAllowed, CodeServiceNotAllowed:
		return ErrPermissionDenied
	default:
		return &PlatformError{Reason: code}
	}
}

// UserMessage returns the notice shown to the user for err.
func UserMessage(err error) string {
	var pe *PlatformError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupported):
		return "Voice input not supported. Try Chrome or Safari."
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access denied. Please allow microphone access."
	case errors.Is(err, ErrNoInputDetected):
		return "No speech detected. Please try again."
	case errors.As(err, &pe) && pe.Reason == CodeStartFailed:
		return "Failed to start voice input"
	case errors.As(err, &pe):
		return "Voice error: " + pe.Reason
	default:
		return "Voice error: " + err.Error()
	}
}
