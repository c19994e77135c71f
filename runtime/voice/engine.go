// Package voice drives speech recognition and speech synthesis as bounded,
// cancellable, single-flight sessions over an injected SpeechEngine.
//
// An IO holds at most one listening session and at most one speaking
// session. Starting a new session of either direction tears down the
// previous one of the same direction; the two directions are independent.
// Engine callbacks may arrive on any goroutine.
//
// Engines are shared mutable resources. Two IO values driving the same
// engine will cancel each other's utterances.
package voice

// SpeechEngine bundles the recognition and synthesis capabilities.
// Either may be nil when the platform lacks it.
type SpeechEngine struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
}

// Availability is implemented by engines whose support is only known at
// runtime, such as a bridge waiting for a client.
type Availability interface {
	Available() bool
}

// RecognitionConfig configures one recognition session.
type RecognitionConfig struct {
	Lang            string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// RecognitionResult is one (interim or final) transcript.
type RecognitionResult struct {
	Transcript string
	Confidence float64
	Final      bool
}

// RecognitionHandler receives session events from the engine.
// Nil callbacks are skipped.
type RecognitionHandler struct {
	OnStart  func()
	OnResult func(RecognitionResult)
	// OnError receives an engine error code such as "no-speech".
	OnError func(code string)
	OnEnd   func()
}

// Recognizer creates recognition sessions.
type Recognizer interface {
	NewRecognition(cfg RecognitionConfig, h RecognitionHandler) Recognition
}

// Recognition is a single recognition session.
type Recognition interface {
	// Start begins capturing audio. Events follow through the handler.
	Start() error

	// Stop ends capture and lets pending results arrive.
	Stop()

	// Abort ends capture and discards pending results.
	Abort()
}

// Voice describes a synthesis voice.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	URI     string `json:"voice_uri,omitempty"`
	Default bool   `json:"default,omitempty"`
	Local   bool   `json:"local,omitempty"`
}

// EndReason tells why an utterance ended.
type EndReason string

// Utterance end reasons.
const (
	EndCompleted EndReason = "completed"
	EndCanceled  EndReason = "canceled"
	EndError     EndReason = "error"
)

// Utterance is a piece of text handed to a Synthesizer.
type Utterance struct {
	Text string
	Lang string

	// Voice is nil for the platform default voice.
	Voice *Voice

	Rate   float64
	Pitch  float64
	Volume float64

	OnStart func()
	// OnEnd is called once; err is set only for EndError.
	OnEnd func(reason EndReason, err error)
}

// Synthesizer speaks utterances.
type Synthesizer interface {
	// Voices returns the voices loaded so far. It may be empty until the
	// engine has finished loading them.
	Voices() []Voice

	// OnVoicesChanged registers fn for voice list updates and returns a
	// function that unregisters it.
	OnVoicesChanged(fn func()) (remove func())

	// Speak queues u.
	Speak(u *Utterance) error

	// Cancel drops every queued and in-flight utterance.
	Cancel()
}
