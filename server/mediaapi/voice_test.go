package mediaapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jari57/studio-agents-sub002/runtime/blob"
	"github.com/Jari57/studio-agents-sub002/runtime/media"
	"github.com/Jari57/studio-agents-sub002/runtime/voice"
	"github.com/Jari57/studio-agents-sub002/runtime/voice/mock"
)

type voiceFixture struct {
	srv   *httptest.Server
	rec   *mock.Recognizer
	synth *mock.Synthesizer
	io    *voice.IO
}

func newVoiceServer(t *testing.T, setup func(*mock.Recognizer, *mock.Synthesizer)) *voiceFixture {
	t.Helper()
	rec := mock.NewRecognizer()
	synth := mock.NewSynthesizer(
		voice.Voice{Name: "Samantha", Lang: "en-US"},
		voice.Voice{Name: "Daniel", Lang: "en-GB"},
	)
	if setup != nil {
		setup(rec, synth)
	}

	events := NewVoiceEvents()
	io := voice.New(mock.Engine(rec, synth), voice.Config{Listener: events.Publish})
	res := media.NewResolver(media.Config{Registry: blob.NewRegistry()})
	srv := httptest.NewServer(NewServer(res, WithVoice(io, events)).Handler())
	t.Cleanup(srv.Close)
	return &voiceFixture{srv: srv, rec: rec, synth: synth, io: io}
}

// async issues a request in the background.
func async(t *testing.T, method, url, body string) <-chan *http.Response {
	t.Helper()
	out := make(chan *http.Response, 1)
	go func() {
		req, err := http.NewRequest(method, url, strings.NewReader(body))
		if err != nil {
			close(out)
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			close(out)
			return
		}
		out <- resp
	}()
	return out
}

func await(t *testing.T, ch <-chan *http.Response) *http.Response {
	t.Helper()
	select {
	case resp, ok := <-ch:
		require.True(t, ok, "request failed")
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	case <-time.After(3 * time.Second):
		t.Fatal("request did not complete")
		return nil
	}
}

func (f *voiceFixture) awaitRecognition(t *testing.T, n int) *mock.Recognition {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.rec.Sessions()) == n }, 2*time.Second, 5*time.Millisecond)
	return f.rec.Last()
}

func TestVoiceStatus(t *testing.T) {
	f := newVoiceServer(t, nil)

	resp := do(t, http.MethodGet, f.srv.URL+RouteVoice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status VoiceStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, VoiceStatus{
		VoiceSupported:  true,
		SpeechSupported: true,
		ListeningState:  string(voice.ListeningIdle),
	}, status)
}

func TestListen_Result(t *testing.T) {
	f := newVoiceServer(t, nil)

	pending := async(t, http.MethodPost, f.srv.URL+RouteVoiceListen, "")
	session := f.awaitRecognition(t, 1)
	session.EmitStart()
	session.EmitResult("make it louder", true)

	resp := await(t, pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ListenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, ListenResponse{Transcript: "make it louder", Outcome: voice.OutcomeResult}, out)
	assert.False(t, f.io.IsListening())
}

func TestListen_Failures(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		status  int
		outcome string
		message string
	}{
		{"permission denied", voice.CodeNotAllowed, http.StatusForbidden, voice.OutcomePermissionDenied, "Microphone access denied. Please allow microphone access."},
		{"no speech", voice.CodeNoSpeech, http.StatusOK, voice.OutcomeNoInput, "No speech detected. Please try again."},
		{"platform error", "network", http.StatusBadGateway, voice.OutcomeFailed, "Voice error: network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVoiceServer(t, nil)

			pending := async(t, http.MethodPost, f.srv.URL+RouteVoiceListen, "")
			f.awaitRecognition(t, 1).EmitError(tt.code)

			resp := await(t, pending)
			assert.Equal(t, tt.status, resp.StatusCode)
			var out ListenResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, tt.outcome, out.Outcome)
			assert.Equal(t, tt.message, out.Message)
		})
	}
}

func TestListen_EndWithoutResult(t *testing.T) {
	f := newVoiceServer(t, nil)

	pending := async(t, http.MethodPost, f.srv.URL+RouteVoiceListen, "")
	f.awaitRecognition(t, 1).EmitEnd()

	resp := await(t, pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ListenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, voice.OutcomeEnded, out.Outcome)
	assert.Empty(t, out.Transcript)
}

func TestListen_StopAndBusy(t *testing.T) {
	f := newVoiceServer(t, nil)

	pending := async(t, http.MethodPost, f.srv.URL+RouteVoiceListen, "")
	session := f.awaitRecognition(t, 1)

	busy := post(t, f.srv.URL+RouteVoiceListen, "")
	assert.Equal(t, http.StatusConflict, busy.StatusCode)

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, f.srv.URL+RouteVoiceListen).StatusCode)
	assert.True(t, session.Stopped())

	resp := await(t, pending)
	var out ListenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, voice.OutcomeStopped, out.Outcome)
}

func TestListen_Unsupported(t *testing.T) {
	f := newVoiceServer(t, func(r *mock.Recognizer, _ *mock.Synthesizer) { r.SetAvailable(false) })

	resp := post(t, f.srv.URL+RouteVoiceListen, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var out ListenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, voice.OutcomeUnsupported, out.Outcome)
	assert.Equal(t, "Voice input not supported. Try Chrome or Safari.", out.Message)
}

func TestSpeak_Wait(t *testing.T) {
	f := newVoiceServer(t, nil)

	pending := async(t, http.MethodPost, f.srv.URL+RouteVoiceSpeak+"?wait=true", `{"text":"Rendering done","region":"UK"}`)
	require.Eventually(t, func() bool { return f.synth.Current() != nil }, 2*time.Second, 5*time.Millisecond)

	u := f.synth.Current()
	assert.Equal(t, "Rendering done", u.Text)
	require.NotNil(t, u.Voice)
	assert.Equal(t, "Daniel", u.Voice.Name)
	f.synth.Finish()

	resp := await(t, pending)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out SpeakResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, string(voice.EndCompleted), out.End)
}

func TestSpeak_AcceptAndStop(t *testing.T) {
	f := newVoiceServer(t, nil)

	resp := post(t, f.srv.URL+RouteVoiceSpeak, `{"text":"hello","gender":"male","rate":1.2}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, f.synth.Spoken(), 1)
	assert.InDelta(t, 1.2, f.synth.Spoken()[0].Rate, 1e-9)
	assert.InDelta(t, voice.DefaultVolume, f.synth.Spoken()[0].Volume, 1e-9)

	resp = post(t, f.srv.URL+RouteVoiceSpeak, `{"text":"quiet","volume":0}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, f.synth.Spoken(), 2)
	assert.Zero(t, f.synth.Spoken()[1].Volume, "explicit zero volume reaches the synthesizer")

	assert.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, f.srv.URL+RouteVoiceSpeak).StatusCode)
	assert.GreaterOrEqual(t, f.synth.Cancels(), 1)
	assert.False(t, f.io.IsSpeaking())
}

func TestSpeak_Validation(t *testing.T) {
	f := newVoiceServer(t, nil)

	resp := post(t, f.srv.URL+RouteVoiceSpeak, `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "text is required")

	resp = post(t, f.srv.URL+RouteVoiceSpeak+"?wait=true", `{"text":"  \t\n "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "blank text never ends an utterance")
	assert.Empty(t, f.synth.Spoken())

	resp = post(t, f.srv.URL+RouteVoiceSpeak, `{"text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	mute := newVoiceServer(t, func(_ *mock.Recognizer, s *mock.Synthesizer) { s.SetAvailable(false) })
	resp = post(t, mute.srv.URL+RouteVoiceSpeak, `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestVoiceRoutesRequireVoice(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+RouteVoice).StatusCode)
	assert.Equal(t, http.StatusNotFound, post(t, srv.URL+RouteVoiceListen, "").StatusCode)
}

func TestVoiceEvents_PublishDoesNotBlock(t *testing.T) {
	events := NewVoiceEvents()
	ch, unsubscribe := events.subscribe()
	defer unsubscribe()

	for i := 0; i < 20; i++ {
		events.Publish(voice.Event{Direction: voice.DirectionSpeak, Outcome: string(voice.EndCompleted)})
	}
	assert.Len(t, ch, cap(ch))
}
