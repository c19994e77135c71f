package bridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jari57/studio-agents-sub002/runtime/voice"
)

func startEngine(t *testing.T) (*Engine, *httptest.Server) {
	t.Helper()
	e := New(Config{CheckOrigin: func(*http.Request) bool { return true }})
	srv := httptest.NewServer(e)
	t.Cleanup(func() {
		_ = e.Close()
		srv.Close()
	})
	return e, srv
}

// wsURL converts an HTTP test server URL to a WebSocket URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// browser is a fake client standing in for the page that runs the speech APIs.
type browser struct {
	t    *testing.T
	conn *websocket.Conn
}

func connect(t *testing.T, e *Engine, srv *httptest.Server) *browser {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, e.Connected, time.Second, 5*time.Millisecond)
	return &browser{t: t, conn: conn}
}

func (b *browser) expect(op string) Command {
	b.t.Helper()
	require.NoError(b.t, b.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var cmd Command
	require.NoError(b.t, b.conn.ReadJSON(&cmd))
	require.Equal(b.t, op, cmd.Op)
	return cmd
}

func (b *browser) emit(msg Message) {
	b.t.Helper()
	require.NoError(b.t, b.conn.WriteJSON(msg))
}

func TestEngine_NotConnected(t *testing.T) {
	e := New(Config{})

	err := e.Speak(&voice.Utterance{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotConnected)

	rec := e.NewRecognition(voice.RecognitionConfig{Lang: "en-US"}, voice.RecognitionHandler{})
	assert.ErrorIs(t, rec.Start(), ErrNotConnected)
	assert.NotPanics(t, rec.Stop)
	assert.NotPanics(t, e.Cancel)
	assert.False(t, e.Connected())
	assert.NoError(t, e.Close())
}

func TestEngine_VoicesEvent(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)

	changed := make(chan struct{}, 1)
	remove := e.OnVoicesChanged(func() { changed <- struct{}{} })
	defer remove()

	b.emit(Message{Event: EventVoices, Voices: []voice.Voice{{Name: "Karen", Lang: "en-AU"}}})

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("voices-changed listener not called")
	}
	assert.Equal(t, []voice.Voice{{Name: "Karen", Lang: "en-AU"}}, e.Voices())
}

func TestEngine_SpeakRoundTrip(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)

	started := make(chan struct{}, 1)
	ended := make(chan voice.EndReason, 1)
	u := &voice.Utterance{
		Text: "hello", Lang: "en", Voice: &voice.Voice{Name: "Samantha"},
		Rate: 0.95, Pitch: 1.05, Volume: 1,
		OnStart: func() { started <- struct{}{} },
		OnEnd:   func(reason voice.EndReason, _ error) { ended <- reason },
	}
	require.NoError(t, e.Speak(u))

	cmd := b.expect(OpSynthesisSpeak)
	assert.Equal(t, "hello", cmd.Text)
	assert.Equal(t, "Samantha", cmd.Voice)
	assert.Equal(t, "en", cmd.Lang)
	assert.InDelta(t, 1.05, cmd.Pitch, 1e-9)
	require.NotEmpty(t, cmd.ID)

	b.emit(Message{Event: EventSynthesisStart, ID: cmd.ID})
	<-started
	b.emit(Message{Event: EventSynthesisEnd, ID: cmd.ID})
	assert.Equal(t, voice.EndCompleted, <-ended)
}

func TestEngine_SynthesisErrors(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)

	type end struct {
		reason voice.EndReason
		err    error
	}
	ended := make(chan end, 2)
	speak := func() string {
		require.NoError(t, e.Speak(&voice.Utterance{
			Text:  "x",
			OnEnd: func(r voice.EndReason, err error) { ended <- end{r, err} },
		}))
		return b.expect(OpSynthesisSpeak).ID
	}

	b.emit(Message{Event: EventSynthesisError, ID: speak(), Error: "interrupted"})
	got := <-ended
	assert.Equal(t, voice.EndCanceled, got.reason)
	assert.NoError(t, got.err)

	b.emit(Message{Event: EventSynthesisError, ID: speak(), Error: "synthesis-failed"})
	got = <-ended
	assert.Equal(t, voice.EndError, got.reason)
	var pe *voice.PlatformError
	require.ErrorAs(t, got.err, &pe)
	assert.Equal(t, "synthesis-failed", pe.Reason)
}

func TestEngine_CancelEndsPending(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)

	var mu sync.Mutex
	var reasons []voice.EndReason
	require.NoError(t, e.Speak(&voice.Utterance{Text: "x", OnEnd: func(r voice.EndReason, _ error) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, r)
	}}))
	id := b.expect(OpSynthesisSpeak).ID

	e.Cancel()
	b.expect(OpSynthesisCancel)

	// A late end event for the canceled utterance is ignored.
	b.emit(Message{Event: EventSynthesisEnd, ID: id})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []voice.EndReason{voice.EndCanceled}, reasons)
}

func TestEngine_RecognitionRoundTrip(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)

	events := make(chan string, 8)
	rec := e.NewRecognition(
		voice.RecognitionConfig{Lang: "en-GB", InterimResults: true, MaxAlternatives: 1},
		voice.RecognitionHandler{
			OnStart:  func() { events <- "start" },
			OnResult: func(r voice.RecognitionResult) { events <- "result:" + r.Transcript },
			OnError:  func(code string) { events <- "error:" + code },
			OnEnd:    func() { events <- "end" },
		},
	)
	require.NoError(t, rec.Start())

	cmd := b.expect(OpRecognitionStart)
	assert.Equal(t, "en-GB", cmd.Lang)
	assert.True(t, cmd.InterimResults)
	assert.False(t, cmd.Continuous)
	assert.Equal(t, 1, cmd.MaxAlternatives)

	b.emit(Message{Event: EventRecognitionStart, ID: cmd.ID})
	b.emit(Message{Event: EventRecognitionRes, ID: cmd.ID, Transcript: "cheerio", Final: true})
	b.emit(Message{Event: EventRecognitionError, ID: cmd.ID, Error: "no-speech"})
	b.emit(Message{Event: EventRecognitionEnd, ID: cmd.ID})

	for _, want := range []string{"start", "result:cheerio", "error:no-speech", "end"} {
		select {
		case got := <-events:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing event %q", want)
		}
	}

	rec.Stop()
	assert.Equal(t, cmd.ID, b.expect(OpRecognitionStop).ID)
	rec.Abort()
	assert.Equal(t, cmd.ID, b.expect(OpRecognitionAbort).ID)
}

func TestEngine_NewerClientReplacesOlder(t *testing.T) {
	e, srv := startEngine(t)
	first := connect(t, e, srv)

	ended := make(chan error, 1)
	require.NoError(t, e.Speak(&voice.Utterance{Text: "x", OnEnd: func(_ voice.EndReason, err error) { ended <- err }}))
	first.expect(OpSynthesisSpeak)

	second := connect(t, e, srv)

	select {
	case err := <-ended:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending utterance was not failed")
	}

	require.NoError(t, first.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := first.conn.ReadMessage()
	assert.Error(t, err, "the old connection is closed")

	require.NoError(t, e.Speak(&voice.Utterance{Text: "y"}))
	assert.Equal(t, "y", second.expect(OpSynthesisSpeak).Text)
}

func TestEngine_DisconnectFailsRecognition(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)

	codes := make(chan string, 2)
	rec := e.NewRecognition(voice.RecognitionConfig{}, voice.RecognitionHandler{
		OnError: func(code string) { codes <- code },
	})
	require.NoError(t, rec.Start())
	b.expect(OpRecognitionStart)

	require.NoError(t, b.conn.Close())

	select {
	case code := <-codes:
		assert.Equal(t, "network", code)
	case <-time.After(2 * time.Second):
		t.Fatal("recognition not failed on disconnect")
	}
	require.Eventually(t, func() bool { return !e.Connected() }, time.Second, 5*time.Millisecond)
}

func TestEngine_DrivesVoiceIO(t *testing.T) {
	e, srv := startEngine(t)
	b := connect(t, e, srv)
	b.emit(Message{Event: EventVoices, Voices: []voice.Voice{{Name: "Daniel", Lang: "en-GB"}}})
	require.Eventually(t, func() bool { return len(e.Voices()) == 1 }, time.Second, 5*time.Millisecond)

	errs := make(chan error, 1)
	io := voice.New(e.SpeechEngine(), voice.Config{OnError: func(err error) { errs <- err }})
	require.True(t, io.IsVoiceSupported())
	require.True(t, io.IsSpeechSupported())

	transcripts := make(chan string, 1)
	io.StartListening(func(s string) { transcripts <- s })
	cmd := b.expect(OpRecognitionStart)
	b.emit(Message{Event: EventRecognitionStart, ID: cmd.ID})
	b.emit(Message{Event: EventRecognitionRes, ID: cmd.ID, Transcript: "play the demo", Final: true})

	select {
	case got := <-transcripts:
		assert.Equal(t, "play the demo", got)
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript")
	}
	b.expect(OpRecognitionStop)

	io.Speak("sure", voice.SpeakOptions{})
	speak := b.expect(OpSynthesisSpeak)
	assert.Equal(t, "Daniel", speak.Voice)

	select {
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	default:
	}
}
