package bridge

import "github.com/Jari57/studio-agents-sub002/runtime/voice"

// Command ops sent to the client.
const (
	OpRecognitionStart = "recognition.start"
	OpRecognitionStop  = "recognition.stop"
	OpRecognitionAbort = "recognition.abort"
	OpSynthesisSpeak   = "synthesis.speak"
	OpSynthesisCancel  = "synthesis.cancel"
)

// Events received from the client.
const (
	EventVoices           = "voices"
	EventRecognitionStart = "recognition.start"
	EventRecognitionRes   = "recognition.result"
	EventRecognitionError = "recognition.error"
	EventRecognitionEnd   = "recognition.end"
	EventSynthesisStart   = "synthesis.start"
	EventSynthesisEnd     = "synthesis.end"
	EventSynthesisError   = "synthesis.error"
)

// Synthesis error codes that mean the utterance was canceled rather than failed.
const (
	synthesisCanceled    = "canceled"
	synthesisInterrupted = "interrupted"
)

// Command is a server-to-client message.
type Command struct {
	Op string `json:"op"`
	ID string `json:"id,omitempty"`

	// recognition.start
	Lang            string `json:"lang,omitempty"`
	Continuous      bool   `json:"continuous,omitempty"`
	InterimResults  bool   `json:"interim_results,omitempty"`
	MaxAlternatives int    `json:"max_alternatives,omitempty"`

	// synthesis.speak
	Text   string  `json:"text,omitempty"`
	Voice  string  `json:"voice,omitempty"`
	Rate   float64 `json:"rate,omitempty"`
	Pitch  float64 `json:"pitch,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}

// Message is a client-to-server event.
type Message struct {
	Event string `json:"event"`
	ID    string `json:"id,omitempty"`

	Voices []voice.Voice `json:"voices,omitempty"`

	Transcript string  `json:"transcript,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Final      bool    `json:"final,omitempty"`

	// Error is the engine error code for *.error events.
	Error string `json:"error,omitempty"`
}
