package mediaapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	pkgerrors "github.com/Jari57/studio-agents-sub002/pkg/errors"
	"github.com/Jari57/studio-agents-sub002/runtime/logger"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

// Voice routes.
const (
	RouteVoice       = "/v1/voice"
	RouteVoiceListen = "/v1/voice/listen"
	RouteVoiceSpeak  = "/v1/voice/speak"
)

// WithVoice exposes io over HTTP. events must receive io's session events,
// typically by calling Publish from voice.Config.Listener.
func WithVoice(io *voice.IO, events *VoiceEvents) Option {
	return func(s *Server) {
		s.voice = io
		s.voiceEvents = events
	}
}

// VoiceEvents fans voice session events out to waiting requests.
type VoiceEvents struct {
	mu   sync.Mutex
	subs map[chan voice.Event]struct{}
}

// NewVoiceEvents creates an empty fan-out.
func NewVoiceEvents() *VoiceEvents {
	return &VoiceEvents{subs: make(map[chan voice.Event]struct{})}
}

// Publish delivers ev to every subscriber without blocking.
func (e *VoiceEvents) Publish(ev voice.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (e *VoiceEvents) subscribe() (<-chan voice.Event, func()) {
	ch := make(chan voice.Event, 8)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()
	return ch, func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
}

// VoiceStatus is returned by GET /v1/voice.
type VoiceStatus struct {
	VoiceSupported  bool   `json:"voice_supported"`
	SpeechSupported bool   `json:"speech_supported"`
	ListeningState  string `json:"listening_state"`
	Speaking        bool   `json:"speaking"`
}

// ListenResponse is returned by POST /v1/voice/listen.
type ListenResponse struct {
	Transcript string `json:"transcript"`
	Outcome    string `json:"outcome"`
	Message    string `json:"message,omitempty"`
}

// SpeakRequest is the body of POST /v1/voice/speak.
// Omitted numbers use the runtime defaults.
type SpeakRequest struct {
	Text     string   `json:"text"`
	Language string   `json:"language,omitempty"`
	Region   string   `json:"region,omitempty"`
	Gender   string   `json:"gender,omitempty"`
	Rate     *float64 `json:"rate,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`
}

// SpeakResponse is returned by POST /v1/voice/speak?wait=true.
type SpeakResponse struct {
	End string `json:"end"`
}

var (
	errListenBusy    = errors.New("a listen request is already waiting")
	errEmptyText     = errors.New("text is required")
	errVoiceDisabled = errors.New("voice is not configured")
)

func (s *Server) registerVoice(mux *http.ServeMux) {
	s.handle(mux, "GET "+RouteVoice, http.HandlerFunc(s.handleVoiceStatus))
	s.handle(mux, "POST "+RouteVoiceListen, http.HandlerFunc(s.handleListen))
	s.handle(mux, "DELETE "+RouteVoiceListen, http.HandlerFunc(s.handleStopListening))
	s.handle(mux, "POST "+RouteVoiceSpeak, http.HandlerFunc(s.handleSpeak))
	s.handle(mux, "DELETE "+RouteVoiceSpeak, http.HandlerFunc(s.handleStopSpeaking))
}

func (s *Server) handleVoiceStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, VoiceStatus{
		VoiceSupported:  s.voice.IsVoiceSupported(),
		SpeechSupported: s.voice.IsSpeechSupported(),
		ListeningState:  string(s.voice.ListeningState()),
		Speaking:        s.voice.IsSpeaking(),
	})
}

// handleListen starts a recognition session and waits for it to end.
// Only one request may wait at a time; a second gets 409.
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	if s.voiceEvents == nil {
		writeError(w, r, pkgerrors.New(component, "Listen", errVoiceDisabled))
		return
	}
	if !s.listenBusy.CompareAndSwap(false, true) {
		writeError(w, r, pkgerrors.New(component, "Listen", errListenBusy).WithStatusCode(http.StatusConflict))
		return
	}
	defer s.listenBusy.Store(false)

	events, unsubscribe := s.voiceEvents.subscribe()
	defer unsubscribe()

	transcripts := make(chan string, 1)
	s.voice.StartListening(func(t string) { transcripts <- t })

	for {
		select {
		case t := <-transcripts:
			writeJSON(w, http.StatusOK, ListenResponse{Transcript: t, Outcome: voice.OutcomeResult})
			return
		case ev := <-events:
			// A superseded event belongs to the session this request replaced.
			if ev.Direction != voice.DirectionListen ||
				ev.Outcome == voice.OutcomeResult || ev.Outcome == voice.OutcomeSuperseded {
				continue
			}
			writeListenEnd(w, r, ev)
			return
		case <-r.Context().Done():
			s.voice.StopListening()
			return
		}
	}
}

func writeListenEnd(w http.ResponseWriter, r *http.Request, ev voice.Event) {
	if ev.Err == nil {
		writeJSON(w, http.StatusOK, ListenResponse{Outcome: ev.Outcome})
		return
	}
	status := http.StatusOK
	switch ev.Outcome {
	case voice.OutcomeUnsupported:
		status = http.StatusServiceUnavailable
	case voice.OutcomePermissionDenied:
		status = http.StatusForbidden
	case voice.OutcomeFailed:
		status = http.StatusBadGateway
	}
	if status != http.StatusOK {
		logger.DebugContext(r.Context(), "listen failed", "outcome", ev.Outcome, "error", ev.Err)
	}
	writeJSON(w, status, ListenResponse{Outcome: ev.Outcome, Message: voice.UserMessage(ev.Err)})
}

func (s *Server) handleStopListening(w http.ResponseWriter, _ *http.Request) {
	s.voice.StopListening()
	w.WriteHeader(http.StatusNoContent)
}

// handleSpeak speaks the request text. With ?wait=true it responds when
// the utterance ends; otherwise it responds 202 at once.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if !s.voice.IsSpeechSupported() {
		writeError(w, r, pkgerrors.New(component, "Speak", voice.ErrUnsupported).
			WithStatusCode(http.StatusServiceUnavailable))
		return
	}

	var req SpeakRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodySize)).Decode(&req); err != nil {
		writeError(w, r, pkgerrors.New(component, "DecodeSpeak", err).WithStatusCode(http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, r, pkgerrors.New(component, "Speak", errEmptyText).WithStatusCode(http.StatusBadRequest))
		return
	}

	ended := make(chan voice.EndReason, 1)
	s.voice.Speak(req.Text, voice.SpeakOptions{
		Language: req.Language,
		Region:   req.Region,
		Gender:   req.Gender,
		Rate:     req.Rate,
		Pitch:    req.Pitch,
		Volume:   req.Volume,
		OnEnd:    func(reason voice.EndReason) { ended <- reason },
	})

	if r.URL.Query().Get("wait") != "true" {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	select {
	case reason := <-ended:
		writeJSON(w, http.StatusOK, SpeakResponse{End: string(reason)})
	case <-r.Context().Done():
	}
}

func (s *Server) handleStopSpeaking(w http.ResponseWriter, _ *http.Request) {
	s.voice.StopSpeaking()
	w.WriteHeader(http.StatusNoContent)
}
