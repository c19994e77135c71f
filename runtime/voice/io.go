package voice

import (
	"strings"
	"sync"
	"time"

	"github.com/Jari57/studio-agents-sub002/runtime/logger"
)

// Defaults applied by New and Speak.
const (
	DefaultLanguage         = "en-US"
	DefaultVoiceGender      = GenderFemale
	DefaultVoiceRegion      = "US"
	DefaultVoiceLoadTimeout = 100 * time.Millisecond

	DefaultRate        = 0.95
	DefaultFemalePitch = 1.05
	DefaultMalePitch   = 0.95
	DefaultVolume      = 1.0
)

// Direction is listening or speaking.
type Direction string

// Session directions.
const (
	DirectionListen Direction = "listen"
	DirectionSpeak  Direction = "speak"
)

// ListeningState is the state of the listening direction.
type ListeningState string

// Listening states.
const (
	ListeningIdle     ListeningState = "idle"
	ListeningStarting ListeningState = "starting"
	ListeningActive   ListeningState = "listening"
)

// Listening session outcomes. Speaking sessions report their EndReason.
const (
	OutcomeResult           = "result"
	OutcomeStopped          = "stopped"
	OutcomeSuperseded       = "superseded"
	OutcomeEnded            = "ended"
	OutcomeNoInput          = "no_input"
	OutcomePermissionDenied = "permission_denied"
	OutcomeFailed           = "error"
	OutcomeUnsupported      = "unsupported"
)

// Event reports the end of a session.
type Event struct {
	Direction Direction
	Outcome   string
	Err       error
}

// NoticeLevel is the severity of a user notice.
type NoticeLevel string

// Notice levels.
const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a short user-facing message. Notices sharing an ID replace
// each other.
type Notice struct {
	Level   NoticeLevel
	Message string
	ID      string
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

const noticeIDListening = "voice-listening"

// Config configures an IO.
type Config struct {
	// Language is the BCP 47 tag used for recognition. Default: "en-US".
	Language string

	// VoiceGender is "female" or "male". Default: "female".
	VoiceGender string

	// VoiceRegion is a preferred accent: UK, GB, AU, IN or US. Default: "US".
	VoiceRegion string

	// OnResult receives final transcripts when StartListening got no callback.
	OnResult func(transcript string)

	// OnError receives listening failures.
	OnError func(err error)

	// Notifier shows user notices. Optional.
	Notifier Notifier

	// Listener is told when each session ends. Optional.
	Listener func(Event)

	// VoiceLoadTimeout bounds the wait for the voice list. Default: 100ms.
	VoiceLoadTimeout time.Duration

	// ListenTimeout aborts a listening session that produced no final
	// result in time. Zero disables it.
	ListenTimeout time.Duration
}

// SpeakOptions overrides Config for one Speak call. Empty strings and nil
// numbers fall back to the defaults.
type SpeakOptions struct {
	Language string
	Region   string
	Gender   string

	// Rate, Pitch and Volume are used as given when set, zero included.
	Rate   *float64
	Pitch  *float64
	Volume *float64

	// OnEnd is called once when the utterance completes, fails or is
	// canceled by StopSpeaking or a newer Speak.
	OnEnd func(EndReason)
}

type listenSession struct {
	onResult func(string)
	rec      Recognition
	timer    *time.Timer
}

type speakSession struct {
	text string
	opts SpeakOptions

	once     sync.Once
	waitDone bool
	remove   func()
	timer    *time.Timer
}

// IO runs listening and speaking sessions. It is safe for concurrent use.
type IO struct {
	recognizer  Recognizer
	synthesizer Synthesizer
	cfg         Config

	canListen bool
	canSpeak  bool

	// listenMu and speakMu serialize engine calls per direction so a
	// superseded session never reaches the engine after its replacement.
	// User callbacks are never invoked while they are held.
	listenMu sync.Mutex
	speakMu  sync.Mutex

	mu          sync.Mutex
	listen      *listenSession
	listenState ListeningState
	speak       *speakSession
	speaking    bool
}

// New creates an IO over engine. Support flags are computed once here.
func New(engine SpeechEngine, cfg Config) *IO {
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.VoiceGender == "" {
		cfg.VoiceGender = DefaultVoiceGender
	}
	if cfg.VoiceRegion == "" {
		cfg.VoiceRegion = DefaultVoiceRegion
	}
	if cfg.VoiceLoadTimeout <= 0 {
		cfg.VoiceLoadTimeout = DefaultVoiceLoadTimeout
	}

	io := &IO{
		recognizer:  engine.Recognizer,
		synthesizer: engine.Synthesizer,
		cfg:         cfg,
		listenState: ListeningIdle,
	}
	io.canListen = engine.Recognizer != nil && available(engine.Recognizer)
	io.canSpeak = engine.Synthesizer != nil && available(engine.Synthesizer)
	return io
}

func available(capability any) bool {
	if a, ok := capability.(Availability); ok {
		return a.Available()
	}
	return true
}

// IsVoiceSupported reports whether speech recognition is available.
func (io *IO) IsVoiceSupported() bool { return io.canListen }

// IsSpeechSupported reports whether speech synthesis is available.
func (io *IO) IsSpeechSupported() bool { return io.canSpeak }

// ListeningState returns the current listening state.
func (io *IO) ListeningState() ListeningState {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.listenState
}

// IsListening reports whether a listening session is starting or active.
func (io *IO) IsListening() bool {
	return io.ListeningState() != ListeningIdle
}

// IsSpeaking reports whether an utterance has started and not yet ended.
func (io *IO) IsSpeaking() bool {
	io.mu.Lock()
	defer io.mu.Unlock()
	return io.speaking
}

// StartListening starts a recognition session, tearing down any previous
// one. The final transcript goes to onResult, or Config.OnResult when
// onResult is nil. Failures are reported through Config.OnError.
func (io *IO) StartListening(onResult func(transcript string)) {
	if !io.canListen {
		logger.Warn("voice input not supported")
		io.fail(DirectionListen, OutcomeUnsupported, ErrUnsupported)
		return
	}

	io.listenMu.Lock()
	io.mu.Lock()
	prev := io.listen
	sess := &listenSession{onResult: onResult}
	io.listen = sess
	io.listenState = ListeningStarting
	io.mu.Unlock()

	if prev != nil {
		prev.stopTimer()
		if prev.rec != nil {
			prev.rec.Abort()
		}
	}

	rec := io.recognizer.NewRecognition(RecognitionConfig{
		Lang:            io.cfg.Language,
		Continuous:      false,
		InterimResults:  true,
		MaxAlternatives: 1,
	}, io.recognitionHandler(sess))

	io.mu.Lock()
	sess.rec = rec
	if io.cfg.ListenTimeout > 0 {
		sess.timer = time.AfterFunc(io.cfg.ListenTimeout, func() { io.listenTimedOut(sess) })
	}
	io.mu.Unlock()

	logger.VoiceEvent(string(DirectionListen), "start", "lang", io.cfg.Language)
	startErr := rec.Start()
	io.listenMu.Unlock()

	if prev != nil {
		io.emit(Event{Direction: DirectionListen, Outcome: OutcomeSuperseded})
	}
	if startErr != nil {
		if _, ok := io.endListen(sess); ok {
			io.fail(DirectionListen, OutcomeFailed, &PlatformError{Reason: CodeStartFailed, Cause: startErr})
		}
	}
}

// StopListening ends the active session, if any. Results still in flight
// are discarded.
func (io *IO) StopListening() {
	io.listenMu.Lock()
	io.mu.Lock()
	sess := io.listen
	io.listen = nil
	io.listenState = ListeningIdle
	io.mu.Unlock()

	if sess == nil {
		io.listenMu.Unlock()
		return
	}
	sess.stopTimer()
	if sess.rec != nil {
		sess.rec.Stop()
	}
	io.listenMu.Unlock()

	logger.VoiceEvent(string(DirectionListen), "stop")
	io.emit(Event{Direction: DirectionListen, Outcome: OutcomeStopped})
}

// ToggleListening stops an active session or starts a new one.
func (io *IO) ToggleListening(onResult func(transcript string)) {
	if io.IsListening() {
		io.StopListening()
		return
	}
	io.StartListening(onResult)
}

func (io *IO) recognitionHandler(sess *listenSession) RecognitionHandler {
	return RecognitionHandler{
		OnStart: func() {
			io.mu.Lock()
			ok := io.listen == sess && io.listenState == ListeningStarting
			if ok {
				io.listenState = ListeningActive
			}
			io.mu.Unlock()
			if ok {
				logger.VoiceEvent(string(DirectionListen), "listening")
				io.notify(NoticeInfo, "Listening...")
			}
		},
		OnResult: func(r RecognitionResult) {
			if !r.Final {
				return
			}
			rec, ok := io.endListen(sess)
			if !ok {
				return
			}
			if rec != nil {
				rec.Stop()
			}
			logger.VoiceEvent(string(DirectionListen), "result", "transcript_length", len(r.Transcript))

			deliver := sess.onResult
			if deliver == nil {
				deliver = io.cfg.OnResult
			}
			if deliver != nil {
				deliver(r.Transcript)
			}
			io.notify(NoticeSuccess, "Got it!")
			io.emit(Event{Direction: DirectionListen, Outcome: OutcomeResult})
		},
		OnError: func(code string) {
			if _, ok := io.endListen(sess); !ok {
				return
			}
			err := ErrorFromCode(code)
			io.fail(DirectionListen, listenOutcome(err), err)
		},
		OnEnd: func() {
			if _, ok := io.endListen(sess); ok {
				logger.VoiceEvent(string(DirectionListen), "end")
				io.emit(Event{Direction: DirectionListen, Outcome: OutcomeEnded})
			}
		},
	}
}

// endListen detaches sess if it is still the active session and returns
// its recognition.
func (io *IO) endListen(sess *listenSession) (Recognition, bool) {
	io.mu.Lock()
	if io.listen != sess {
		io.mu.Unlock()
		return nil, false
	}
	io.listen = nil
	io.listenState = ListeningIdle
	rec := sess.rec
	io.mu.Unlock()

	sess.stopTimer()
	return rec, true
}

func (io *IO) listenTimedOut(sess *listenSession) {
	rec, ok := io.endListen(sess)
	if !ok {
		return
	}
	if rec != nil {
		rec.Abort()
	}
	io.fail(DirectionListen, OutcomeNoInput, ErrNoInputDetected)
}

func (s *listenSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func listenOutcome(err error) string {
	switch err {
	case ErrNoInputDetected:
		return OutcomeNoInput
	case ErrPermissionDenied:
		return OutcomePermissionDenied
	default:
		return OutcomeFailed
	}
}

// Speak speaks text, canceling any utterance in flight. It is a no-op when
// synthesis is unsupported or text is blank.
func (io *IO) Speak(text string, opts SpeakOptions) {
	if !io.canSpeak {
		logger.Warn("speech synthesis not supported")
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	io.speakMu.Lock()
	io.mu.Lock()
	prev := io.speak
	sess := &speakSession{text: text, opts: opts}
	io.speak = sess
	io.speaking = false
	io.mu.Unlock()

	if prev != nil {
		io.synthesizer.Cancel()
	}
	voices := io.synthesizer.Voices()
	io.speakMu.Unlock()

	if prev != nil {
		io.closeSpeak(prev, EndCanceled, nil)
	}
	if len(voices) > 0 {
		io.performOnce(sess, voices)
		return
	}
	io.awaitVoices(sess)
}

// StopSpeaking cancels the current utterance. It is safe to call when idle.
func (io *IO) StopSpeaking() {
	if !io.canSpeak {
		return
	}
	io.speakMu.Lock()
	io.mu.Lock()
	sess := io.speak
	io.speak = nil
	io.speaking = false
	io.mu.Unlock()

	io.synthesizer.Cancel()
	io.speakMu.Unlock()

	if sess != nil {
		io.closeSpeak(sess, EndCanceled, nil)
	}
}

// ToggleSpeaking stops a pending or active utterance, or speaks text.
func (io *IO) ToggleSpeaking(text string) {
	io.mu.Lock()
	active := io.speak != nil
	io.mu.Unlock()

	if active {
		io.StopSpeaking()
		return
	}
	io.Speak(text, SpeakOptions{})
}

// Close ends both directions.
func (io *IO) Close() {
	io.StopListening()
	io.StopSpeaking()
}

// awaitVoices waits for the voice list. The voices-changed listener and
// the fallback timer race; whichever fires first speaks.
func (io *IO) awaitVoices(sess *speakSession) {
	remove := io.synthesizer.OnVoicesChanged(func() {
		if voices := io.synthesizer.Voices(); len(voices) > 0 {
			io.performOnce(sess, voices)
		}
	})
	timer := time.AfterFunc(io.cfg.VoiceLoadTimeout, func() {
		io.performOnce(sess, io.synthesizer.Voices())
	})
	logger.VoiceEvent(string(DirectionSpeak), "awaiting voices", "timeout", io.cfg.VoiceLoadTimeout)

	io.mu.Lock()
	if sess.waitDone {
		io.mu.Unlock()
		remove()
		timer.Stop()
		return
	}
	sess.remove = remove
	sess.timer = timer
	io.mu.Unlock()
}

func (io *IO) performOnce(sess *speakSession, voices []Voice) {
	sess.once.Do(func() { io.perform(sess, voices) })
}

func (io *IO) perform(sess *speakSession, voices []Voice) {
	io.speakMu.Lock()
	io.mu.Lock()
	current := io.speak == sess
	remove, timer := sess.detachWaiters()
	io.mu.Unlock()
	stopWaiters(remove, timer)

	if !current {
		io.speakMu.Unlock()
		return
	}

	u := io.utterance(sess, voices)
	u.OnStart = func() {
		io.mu.Lock()
		ok := io.speak == sess
		if ok {
			io.speaking = true
		}
		io.mu.Unlock()
		if ok {
			logger.VoiceEvent(string(DirectionSpeak), "speaking")
		}
	}
	u.OnEnd = func(reason EndReason, err error) {
		if io.endSpeak(sess) {
			io.closeSpeak(sess, reason, err)
		}
	}

	voiceName := "default"
	if u.Voice != nil {
		voiceName = u.Voice.Name
	}
	logger.VoiceEvent(string(DirectionSpeak), "start",
		"voice", voiceName, "lang", u.Lang, "text", logger.Truncate(sess.text, 80))

	err := io.synthesizer.Speak(u)
	io.speakMu.Unlock()

	if err != nil && io.endSpeak(sess) {
		io.closeSpeak(sess, EndError, err)
	}
}

func (io *IO) utterance(sess *speakSession, voices []Voice) *Utterance {
	opts := sess.opts
	lang := opts.Language
	if lang == "" {
		lang = languagePrefix(io.cfg.Language)
	}
	region := opts.Region
	if region == "" {
		region = io.cfg.VoiceRegion
	}
	gender := opts.Gender
	if gender == "" {
		gender = io.cfg.VoiceGender
	}

	u := &Utterance{
		Text:   sess.text,
		Lang:   lang,
		Voice:  SelectVoice(voices, VoiceCriteria{Language: lang, Region: region, Gender: gender}),
		Rate:   orDefault(opts.Rate, DefaultRate),
		Volume: orDefault(opts.Volume, DefaultVolume),
	}
	if isFemale(gender) {
		u.Pitch = orDefault(opts.Pitch, DefaultFemalePitch)
	} else {
		u.Pitch = orDefault(opts.Pitch, DefaultMalePitch)
	}
	return u
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// endSpeak detaches sess if it is still the active session.
func (io *IO) endSpeak(sess *speakSession) bool {
	io.mu.Lock()
	defer io.mu.Unlock()
	if io.speak != sess {
		return false
	}
	io.speak = nil
	io.speaking = false
	return true
}

// closeSpeak finishes a session that has already been detached.
func (io *IO) closeSpeak(sess *speakSession, reason EndReason, err error) {
	io.mu.Lock()
	remove, timer := sess.detachWaiters()
	io.mu.Unlock()
	stopWaiters(remove, timer)

	if err != nil {
		logger.Warn("speech synthesis error", "error", err)
	}
	logger.VoiceEvent(string(DirectionSpeak), "end", "reason", reason)
	io.emit(Event{Direction: DirectionSpeak, Outcome: string(reason), Err: err})
	if sess.opts.OnEnd != nil {
		sess.opts.OnEnd(reason)
	}
}

// detachWaiters must be called with io.mu held.
func (s *speakSession) detachWaiters() (func(), *time.Timer) {
	s.waitDone = true
	remove, timer := s.remove, s.timer
	s.remove, s.timer = nil, nil
	return remove, timer
}

func stopWaiters(remove func(), timer *time.Timer) {
	if remove != nil {
		remove()
	}
	if timer != nil {
		timer.Stop()
	}
}

func (io *IO) fail(dir Direction, outcome string, err error) {
	logger.Warn("voice session failed", "direction", dir, "error", err)
	io.notify(NoticeError, UserMessage(err))
	if io.cfg.OnError != nil {
		io.cfg.OnError(err)
	}
	io.emit(Event{Direction: dir, Outcome: outcome, Err: err})
}

func (io *IO) notify(level NoticeLevel, msg string) {
	if io.cfg.Notifier != nil {
		io.cfg.Notifier.Notify(Notice{Level: level, Message: msg, ID: noticeIDListening})
	}
}

func (io *IO) emit(ev Event) {
	if io.cfg.Listener != nil {
		io.cfg.Listener(ev)
	}
}
