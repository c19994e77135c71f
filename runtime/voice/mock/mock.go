// Package mock provides scriptable in-memory speech engines for tests.
//
// Engine events are never fired on their own: tests drive them with the
// Emit*, Finish, Fail and FireVoicesChanged methods. Callbacks run on the
// calling goroutine with no locks held.
package mock

import (
	"sync"

	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

// Recognizer is a mock voice.Recognizer that records every session.
type Recognizer struct {
	mu          sync.Mutex
	unavailable bool
	startErr    error
	sessions    []*Recognition
}

// NewRecognizer creates an available Recognizer.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// SetAvailable changes what Available reports.
func (r *Recognizer) SetAvailable(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unavailable = !ok
}

// SetStartError makes Start fail on sessions created afterwards.
func (r *Recognizer) SetStartError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr = err
}

// Available implements voice.Availability.
func (r *Recognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unavailable
}

// NewRecognition implements voice.Recognizer.
func (r *Recognizer) NewRecognition(cfg voice.RecognitionConfig, h voice.RecognitionHandler) voice.Recognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &Recognition{Config: cfg, handler: h, startErr: r.startErr}
	r.sessions = append(r.sessions, s)
	return s
}

// Sessions returns every session created so far.
func (r *Recognizer) Sessions() []*Recognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Recognition(nil), r.sessions...)
}

// Last returns the most recent session, or nil.
func (r *Recognizer) Last() *Recognition {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[len(r.sessions)-1]
}

// Recognition is a mock voice.Recognition.
type Recognition struct {
	Config voice.RecognitionConfig

	handler  voice.RecognitionHandler
	startErr error

	mu      sync.Mutex
	started bool
	stopped bool
	aborted bool
}

// Start implements voice.Recognition.
func (s *Recognition) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

// Stop implements voice.Recognition. Like browsers, it fires end.
func (s *Recognition) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.EmitEnd()
}

// Abort implements voice.Recognition. Like browsers, it fires an
// "aborted" error followed by end.
func (s *Recognition) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.EmitError(voice.CodeAborted)
	s.EmitEnd()
}

// Started reports whether Start succeeded.
func (s *Recognition) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped reports whether Stop was called.
func (s *Recognition) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Aborted reports whether Abort was called.
func (s *Recognition) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// EmitStart fires the start event.
func (s *Recognition) EmitStart() {
	if s.handler.OnStart != nil {
		s.handler.OnStart()
	}
}

// EmitResult fires a result event.
func (s *Recognition) EmitResult(transcript string, final bool) {
	if s.handler.OnResult != nil {
		s.handler.OnResult(voice.RecognitionResult{Transcript: transcript, Confidence: 0.9, Final: final})
	}
}

// EmitError fires an error event with an engine code.
func (s *Recognition) EmitError(code string) {
	if s.handler.OnError != nil {
		s.handler.OnError(code)
	}
}

// EmitEnd fires the end event.
func (s *Recognition) EmitEnd() {
	if s.handler.OnEnd != nil {
		s.handler.OnEnd()
	}
}

// Synthesizer is a mock voice.Synthesizer. Speak fires start immediately;
// the utterance stays in flight until Finish, Fail or Cancel.
type Synthesizer struct {
	mu          sync.Mutex
	unavailable bool
	speakErr    error
	voices      []voice.Voice
	listeners   map[int]func()
	nextID      int
	spoken      []*voice.Utterance
	current     *voice.Utterance
	cancels     int
}

// NewSynthesizer creates a Synthesizer with the given voices loaded.
func NewSynthesizer(voices ...voice.Voice) *Synthesizer {
	return &Synthesizer{
		voices:    voices,
		listeners: make(map[int]func()),
	}
}

// SetAvailable changes what Available reports.
func (s *Synthesizer) SetAvailable(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = !ok
}

// SetSpeakError makes Speak fail with err.
func (s *Synthesizer) SetSpeakError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakErr = err
}

// Available implements voice.Availability.
func (s *Synthesizer) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.unavailable
}

// SetVoices replaces the voice list without notifying listeners.
func (s *Synthesizer) SetVoices(voices ...voice.Voice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = voices
}

// FireVoicesChanged calls every registered voices-changed listener.
func (s *Synthesizer) FireVoicesChanged() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Listeners returns the number of registered voices-changed listeners.
func (s *Synthesizer) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// Voices implements voice.Synthesizer.
func (s *Synthesizer) Voices() []voice.Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]voice.Voice(nil), s.voices...)
}

// OnVoicesChanged implements voice.Synthesizer.
func (s *Synthesizer) OnVoicesChanged(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Speak implements voice.Synthesizer.
func (s *Synthesizer) Speak(u *voice.Utterance) error {
	s.mu.Lock()
	if s.speakErr != nil {
		err := s.speakErr
		s.mu.Unlock()
		return err
	}
	s.spoken = append(s.spoken, u)
	s.current = u
	s.mu.Unlock()

	if u.OnStart != nil {
		u.OnStart()
	}
	return nil
}

// Cancel implements voice.Synthesizer. The in-flight utterance ends with
// voice.EndCanceled.
func (s *Synthesizer) Cancel() {
	s.end(voice.EndCanceled, nil, true)
}

// Finish completes the in-flight utterance.
func (s *Synthesizer) Finish() {
	s.end(voice.EndCompleted, nil, false)
}

// Fail ends the in-flight utterance with err.
func (s *Synthesizer) Fail(err error) {
	s.end(voice.EndError, err, false)
}

func (s *Synthesizer) end(reason voice.EndReason, err error, cancel bool) {
	s.mu.Lock()
	if cancel {
		s.cancels++
	}
	u := s.current
	s.current = nil
	s.mu.Unlock()

	if u != nil && u.OnEnd != nil {
		u.OnEnd(reason, err)
	}
}

// Spoken returns every utterance passed to Speak.
func (s *Synthesizer) Spoken() []*voice.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*voice.Utterance(nil), s.spoken...)
}

// Current returns the in-flight utterance, or nil.
func (s *Synthesizer) Current() *voice.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Cancels returns how many times Cancel was called.
func (s *Synthesizer) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// Engine returns a voice.SpeechEngine backed by r and s. Either may be nil.
func Engine(r *Recognizer, s *Synthesizer) voice.SpeechEngine {
	var engine voice.SpeechEngine
	if r != nil {
		engine.Recognizer = r
	}
	if s != nil {
		engine.Synthesizer = s
	}
	return engine
}
