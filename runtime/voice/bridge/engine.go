// Package bridge implements voice engines backed by a browser connected over
// a websocket. The browser runs the platform speech APIs and relays their
// events; the Engine exposes them as voice.Recognizer and voice.Synthesizer.
//
// Only one client is served at a time. A newer connection replaces the older
// one, and sessions that were in flight on the old connection fail.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Jari57/studio-agents-sub002/runtime/logger"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

// Default connection constants.
const (
	DefaultWriteWait      = 10 * time.Second
	DefaultMaxMessageSize = 1024 * 1024 // 1MB
	DefaultCloseGrace     = time.Second
)

// ErrNotConnected is returned when a command is issued with no client attached.
var ErrNotConnected = errors.New("voice bridge: no client connected")

// disconnectCode is reported to recognitions that lose their client.
const disconnectCode = "network"

// Config configures an Engine.
type Config struct {
	// WriteWait is the write deadline for each message. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// CheckOrigin validates the handshake origin. Nil accepts same-origin
	// requests only (the gorilla default).
	CheckOrigin func(r *http.Request) bool
}

func (c *Config) defaults() {
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // serializes writes (gorilla/websocket requirement)
}

// Engine relays speech sessions to a connected browser.
type Engine struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu           sync.Mutex
	client       *client
	voices       []voice.Voice
	listeners    map[int]func()
	nextListener int
	recognitions map[string]*recognition
	utterances   map[string]*voice.Utterance
}

// New creates an Engine. Mount it as an http.Handler to accept clients.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: cfg.CheckOrigin,
		},
		listeners:    make(map[int]func()),
		recognitions: make(map[string]*recognition),
		utterances:   make(map[string]*voice.Utterance),
	}
}

// SpeechEngine returns the engine as a voice.SpeechEngine.
func (e *Engine) SpeechEngine() voice.SpeechEngine {
	return voice.SpeechEngine{Recognizer: e, Synthesizer: e}
}

// Connected reports whether a client is attached.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client != nil
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("voice bridge upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(e.cfg.MaxMessageSize)

	c := &client{conn: conn}
	e.mu.Lock()
	old := e.client
	e.client = c
	e.mu.Unlock()

	if old != nil {
		logger.Info("voice bridge client replaced", "remote", r.RemoteAddr)
		e.failPending()
		e.closeClient(old)
	} else {
		logger.Info("voice bridge client connected", "remote", r.RemoteAddr)
	}

	e.readLoop(c)

	e.mu.Lock()
	current := e.client == c
	if current {
		e.client = nil
	}
	e.mu.Unlock()

	if current {
		logger.Info("voice bridge client disconnected", "remote", r.RemoteAddr)
		e.failPending()
	}
	_ = conn.Close()
}

// Close disconnects the current client, if any.
func (e *Engine) Close() error {
	e.mu.Lock()
	c := e.client
	e.client = nil
	e.mu.Unlock()

	if c == nil {
		return nil
	}
	e.failPending()
	e.closeClient(c)
	return nil
}

func (e *Engine) closeClient(c *client) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced")
	_ = c.conn.SetWriteDeadline(time.Now().Add(DefaultCloseGrace))
	_ = c.conn.WriteMessage(websocket.CloseMessage, msg)
	_ = c.conn.Close()
}

func (e *Engine) readLoop(c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("voice bridge read ended", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("voice bridge: malformed message", "error", err, "data", logger.Truncate(string(data), 200))
			continue
		}
		e.dispatch(&msg)
	}
}

func (e *Engine) send(cmd *Command) error {
	e.mu.Lock()
	c := e.client
	e.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", cmd.Op, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Op, err)
	}
	return nil
}

func (e *Engine) dispatch(msg *Message) {
	switch msg.Event {
	case EventVoices:
		e.setVoices(msg.Voices)

	case EventRecognitionStart, EventRecognitionRes, EventRecognitionError, EventRecognitionEnd:
		e.dispatchRecognition(msg)

	case EventSynthesisStart, EventSynthesisEnd, EventSynthesisError:
		e.dispatchSynthesis(msg)

	default:
		logger.Warn("voice bridge: unknown event", "event", msg.Event)
	}
}

func (e *Engine) dispatchRecognition(msg *Message) {
	e.mu.Lock()
	rec := e.recognitions[msg.ID]
	if msg.Event == EventRecognitionEnd {
		delete(e.recognitions, msg.ID)
	}
	e.mu.Unlock()
	if rec == nil {
		logger.Debug("voice bridge: event for unknown recognition", "event", msg.Event, "id", msg.ID)
		return
	}

	h := rec.handler
	switch msg.Event {
	case EventRecognitionStart:
		if h.OnStart != nil {
			h.OnStart()
		}
	case EventRecognitionRes:
		if h.OnResult != nil {
			h.OnResult(voice.RecognitionResult{Transcript: msg.Transcript, Confidence: msg.Confidence, Final: msg.Final})
		}
	case EventRecognitionError:
		if h.OnError != nil {
			h.OnError(msg.Error)
		}
	case EventRecognitionEnd:
		if h.OnEnd != nil {
			h.OnEnd()
		}
	}
}

func (e *Engine) dispatchSynthesis(msg *Message) {
	e.mu.Lock()
	u := e.utterances[msg.ID]
	if msg.Event != EventSynthesisStart {
		delete(e.utterances, msg.ID)
	}
	e.mu.Unlock()
	if u == nil {
		logger.Debug("voice bridge: event for unknown utterance", "event", msg.Event, "id", msg.ID)
		return
	}

	switch msg.Event {
	case EventSynthesisStart:
		if u.OnStart != nil {
			u.OnStart()
		}
	case EventSynthesisEnd:
		endUtterance(u, voice.EndCompleted, nil)
	case EventSynthesisError:
		if msg.Error == synthesisCanceled || msg.Error == synthesisInterrupted {
			endUtterance(u, voice.EndCanceled, nil)
			return
		}
		endUtterance(u, voice.EndError, &voice.PlatformError{Reason: msg.Error})
	}
}

// failPending ends every in-flight session after the client went away.
func (e *Engine) failPending() {
	e.mu.Lock()
	recs := e.recognitions
	utts := e.utterances
	e.recognitions = make(map[string]*recognition)
	e.utterances = make(map[string]*voice.Utterance)
	e.mu.Unlock()

	for _, rec := range recs {
		if rec.handler.OnError != nil {
			rec.handler.OnError(disconnectCode)
		}
		if rec.handler.OnEnd != nil {
			rec.handler.OnEnd()
		}
	}
	for _, u := range utts {
		endUtterance(u, voice.EndError, ErrNotConnected)
	}
}

func endUtterance(u *voice.Utterance, reason voice.EndReason, err error) {
	if u.OnEnd != nil {
		u.OnEnd(reason, err)
	}
}

var (
	_ voice.Recognizer  = (*Engine)(nil)
	_ voice.Synthesizer = (*Engine)(nil)
	_ http.Handler      = (*Engine)(nil)
)

// NewRecognition implements voice.Recognizer.
func (e *Engine) NewRecognition(cfg voice.RecognitionConfig, h voice.RecognitionHandler) voice.Recognition {
	return &recognition{engine: e, id: uuid.NewString(), cfg: cfg, handler: h}
}

type recognition struct {
	engine  *Engine
	id      string
	cfg     voice.RecognitionConfig
	handler voice.RecognitionHandler
}

// Start registers the session and asks the client to begin recognition.
func (r *recognition) Start() error {
	e := r.engine
	e.mu.Lock()
	e.recognitions[r.id] = r
	e.mu.Unlock()

	err := e.send(&Command{
		Op:              OpRecognitionStart,
		ID:              r.id,
		Lang:            r.cfg.Lang,
		Continuous:      r.cfg.Continuous,
		InterimResults:  r.cfg.InterimResults,
		MaxAlternatives: r.cfg.MaxAlternatives,
	})
	if err != nil {
		e.mu.Lock()
		delete(e.recognitions, r.id)
		e.mu.Unlock()
		return err
	}
	return nil
}

func (r *recognition) Stop() {
	if err := r.engine.send(&Command{Op: OpRecognitionStop, ID: r.id}); err != nil {
		logger.Debug("voice bridge: stop not delivered", "id", r.id, "error", err)
	}
}

func (r *recognition) Abort() {
	if err := r.engine.send(&Command{Op: OpRecognitionAbort, ID: r.id}); err != nil {
		logger.Debug("voice bridge: abort not delivered", "id", r.id, "error", err)
	}
}

func (e *Engine) setVoices(voices []voice.Voice) {
	e.mu.Lock()
	e.voices = append([]voice.Voice(nil), voices...)
	fns := make([]func(), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	logger.Debug("voice bridge: voices updated", "count", len(voices))
	for _, fn := range fns {
		fn()
	}
}

// Voices implements voice.Synthesizer.
func (e *Engine) Voices() []voice.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]voice.Voice(nil), e.voices...)
}

// OnVoicesChanged implements voice.Synthesizer.
func (e *Engine) OnVoicesChanged(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Speak implements voice.Synthesizer.
func (e *Engine) Speak(u *voice.Utterance) error {
	id := uuid.NewString()
	e.mu.Lock()
	e.utterances[id] = u
	e.mu.Unlock()

	cmd := &Command{
		Op:     OpSynthesisSpeak,
		ID:     id,
		Text:   u.Text,
		Lang:   u.Lang,
		Rate:   u.Rate,
		Pitch:  u.Pitch,
		Volume: u.Volume,
	}
	if u.Voice != nil {
		cmd.Voice = u.Voice.Name
	}
	if err := e.send(cmd); err != nil {
		e.mu.Lock()
		delete(e.utterances, id)
		e.mu.Unlock()
		return err
	}
	return nil
}

// Cancel implements voice.Synthesizer. Pending utterances end with
// voice.EndCanceled immediately; late client events for them are ignored.
func (e *Engine) Cancel() {
	e.mu.Lock()
	utts := e.utterances
	e.utterances = make(map[string]*voice.Utterance)
	e.mu.Unlock()

	if err := e.send(&Command{Op: OpSynthesisCancel}); err != nil && !errors.Is(err, ErrNotConnected) {
		logger.Warn("voice bridge: cancel not delivered", "error", err)
	}
	for _, u := range utts {
		endUtterance(u, voice.EndCanceled, nil)
	}
}
