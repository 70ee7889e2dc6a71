// Package engine drives one listen-and-repeat practice session.
//
// The session is modelled as a finite state machine ([State], [Transition])
// with no I/O of its own. [Engine] owns the machine and carries out the
// effects it requests: fetching sentences, playing them back, capturing and
// scoring responses, accounting practice time and persisting the finished
// session.
//
// Asynchronous work (sentence generation, playback, recognition) is tagged
// with the turn it was started for. Results that arrive after the turn has
// moved on are dropped. At most one response is scored at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/hearcoach/internal/generator"
	"github.com/MrWong99/hearcoach/internal/observe"
	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/internal/scoring"
	"github.com/MrWong99/hearcoach/internal/usage"
	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/pronunciation"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/store"
)

var (
	// ErrActive is returned by Start while a session is running.
	ErrActive = errors.New("engine: session already active")

	// ErrNotActive is returned when an operation needs a running session.
	ErrNotActive = errors.New("engine: no active session")

	// ErrNotReady is returned while the next sentence is still loading.
	ErrNotReady = errors.New("engine: sentence not ready")

	// ErrBusy is returned when a response is already being recorded or
	// scored.
	ErrBusy = errors.New("engine: response in progress")

	// ErrAwaitingNext is returned when a response is submitted after the
	// turn was decided.
	ErrAwaitingNext = errors.New("engine: turn finished, waiting for next")

	// ErrTurnOpen is returned by Next while the current sentence still
	// accepts responses.
	ErrTurnOpen = errors.New("engine: current sentence not finished")

	// ErrStale is returned when a response finished after its turn was
	// superseded. The result is discarded.
	ErrStale = errors.New("engine: result discarded, turn superseded")

	// ErrNotRecording is returned by StopRecording without a recording.
	ErrNotRecording = errors.New("engine: not recording")

	// ErrHintUnavailable is returned by Hint before enough replays.
	ErrHintUnavailable = errors.New("engine: hint not available yet")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine: closed")

	errNoRecorder   = errors.New("no recorder configured")
	errNoRecognizer = errors.New("no speech recognizer configured")
)

// Speaker reads a sentence aloud and reports how long it played.
// [audio.Speaker] satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text, language string, rate, pitch float64) (time.Duration, error)
}

var _ Speaker = (*audio.Speaker)(nil)

// Settings are the user-adjustable practice settings.
type Settings struct {
	Language    practice.Language
	Tier        practice.Tier
	MaxAttempts int
	SpeechRate  float64
	Pitch       float64

	// ResponseTimeout bounds recognition plus pronunciation rating of one
	// voice response.
	ResponseTimeout time.Duration
}

// DefaultSettings returns English, easy tier, three attempts, normal speech
// and a 15 second response timeout.
func DefaultSettings() Settings {
	return Settings{
		Language:        practice.English,
		Tier:            practice.Easy,
		MaxAttempts:     3,
		SpeechRate:      1,
		Pitch:           1,
		ResponseTimeout: 15 * time.Second,
	}
}

// Validate reports every invalid field.
func (s Settings) Validate() error {
	var errs []error
	if !s.Language.Valid() {
		errs = append(errs, fmt.Errorf("engine: unknown language %q", s.Language))
	}
	if !s.Tier.Valid() {
		errs = append(errs, fmt.Errorf("engine: unknown tier %q", s.Tier))
	}
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("engine: max attempts must be at least 1, got %d", s.MaxAttempts))
	}
	if s.SpeechRate <= 0 {
		errs = append(errs, fmt.Errorf("engine: speech rate must be positive, got %v", s.SpeechRate))
	}
	if s.Pitch <= 0 {
		errs = append(errs, fmt.Errorf("engine: pitch must be positive, got %v", s.Pitch))
	}
	if s.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("engine: response timeout must be positive, got %v", s.ResponseTimeout))
	}
	return errors.Join(errs...)
}

// Option configures an [Engine].
type Option func(*Engine)

// WithSpeaker sets the playback seam. Without one, sentences are not played.
func WithSpeaker(s Speaker) Option {
	return func(e *Engine) { e.speaker = s }
}

// WithRecorder sets the microphone seam used for voice responses.
func WithRecorder(r audio.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRecognizer sets the speech recognizer. name labels its metrics.
func WithRecognizer(name string, p stt.Provider) Option {
	return func(e *Engine) { e.recognizer, e.recognizerName = p, name }
}

// WithRater sets the pronunciation rater. Without one, voice responses are
// judged on text similarity alone.
func WithRater(name string, r pronunciation.Rater) Option {
	return func(e *Engine) { e.rater, e.raterName = r, name }
}

// WithScorer replaces the default response scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithPlanner replaces the default request planner.
func WithPlanner(p *generator.Planner) Option {
	return func(e *Engine) { e.planner = p }
}

// WithFallback sets the generator used when the primary generator fails.
// Defaults to an offline generator built on first use.
func WithFallback(g generator.Generator) Option {
	return func(e *Engine) { e.fallback = g }
}

// WithUsage enables daily usage accounting and goal notifications.
func WithUsage(t *usage.Tracker) Option {
	return func(e *Engine) { e.usage = t }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option {
	return func(e *Engine) { e.settings = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNotificationBuffer sets the capacity of the notification channel.
// Notifications that do not fit are dropped.
func WithNotificationBuffer(n int) Option {
	return func(e *Engine) { e.notifyBuf = n }
}

// Engine runs practice sessions one at a time. All methods are safe for
// concurrent use.
type Engine struct {
	gen            generator.Generator
	sessions       store.SessionStore
	speaker        Speaker
	recorder       audio.Recorder
	recognizer     stt.Provider
	recognizerName string
	rater          pronunciation.Rater
	raterName      string
	scorer         *scoring.Scorer
	planner        *generator.Planner
	usage          *usage.Tracker
	metrics        *observe.Metrics
	now            func() time.Time
	notifyBuf      int
	notify         chan Notification

	fallbackOnce sync.Once
	fallback     generator.Generator

	base       context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup

	mu            sync.Mutex
	settings      Settings
	state         State
	session       practice.Session
	completed     int
	sessionCtx    context.Context
	cancelSession context.CancelFunc
	playToken     uint64
	cancelPlay    context.CancelFunc
	recording     audio.Recording
	recordingTurn uint64
	closed        bool
}

// New returns an Engine drawing sentences from gen and persisting finished
// sessions to sessions.
func New(gen generator.Generator, sessions store.SessionStore, opts ...Option) (*Engine, error) {
	if gen == nil {
		return nil, errors.New("engine: generator is required")
	}
	if sessions == nil {
		return nil, errors.New("engine: session store is required")
	}
	e := &Engine{
		gen:       gen,
		sessions:  sessions,
		settings:  DefaultSettings(),
		now:       time.Now,
		notifyBuf: 16,
	}
	for _, o := range opts {
		o(e)
	}
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}
	if e.scorer == nil {
		e.scorer = scoring.New()
	}
	if e.planner == nil {
		e.planner = generator.NewPlanner(uint32(e.now().UnixNano()))
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	if e.recognizerName == "" {
		e.recognizerName = "stt"
	}
	if e.raterName == "" {
		e.raterName = "pronunciation"
	}
	e.notify = make(chan Notification, e.notifyBuf)
	e.base, e.cancelBase = context.WithCancel(context.Background())
	return e, nil
}

// Notifications delivers asynchronous events. It is closed by Close.
func (e *Engine) Notifications() <-chan Notification {
	return e.notify
}

// Start begins a new session and requests its first sentence. The sentence
// arrives asynchronously; a [SentenceReady] notification announces it.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if err := e.checkStartable(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	completed, listErr := e.countCompleted(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkStartable(); err != nil {
		return err
	}
	if listErr != nil {
		slog.Warn("engine: could not count past sessions, using cached count", "err", listErr, "cached", e.completed)
	} else {
		e.completed = completed
	}

	e.session = practice.NewSession(e.settings.Language, e.now())
	e.sessionCtx, e.cancelSession = context.WithCancel(e.base)
	e.metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("session started", "session_id", e.session.ID, "language", e.settings.Language,
		"tier", e.settings.Tier, "completed_sessions", e.completed)

	e.apply(EventStart{MaxAttempts: e.settings.MaxAttempts})
	return nil
}

func (e *Engine) checkStartable() error {
	if e.closed {
		return ErrClosed
	}
	if e.state.Active() {
		return ErrActive
	}
	return nil
}

func (e *Engine) countCompleted(ctx context.Context) (int, error) {
	past, err := e.sessions.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(past), nil
}

// Next moves on from a correct or revealed sentence to a new one.
func (e *Engine) Next(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Active() {
		return ErrNotActive
	}
	switch e.state.Phase {
	case LoadingSentence:
		return ErrNotReady
	case AwaitingResponse, ScoringResponse:
		return ErrTurnOpen
	}
	e.apply(EventNext{})
	return nil
}

// Replay plays the current sentence again, cutting off any playback in
// progress. Replays never count as attempts.
func (e *Engine) Replay(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Active() {
		return ErrNotActive
	}
	if !e.state.HasSentence() {
		return ErrNotReady
	}
	e.apply(EventReplay{})
	return nil
}

// Hint returns the beginning of the current sentence with the rest masked.
// It becomes available after four replays and does not count as an attempt.
func (e *Engine) Hint() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.state.Active() {
		return "", ErrNotActive
	}
	if !e.state.HintAvailable() {
		return "", ErrHintUnavailable
	}
	return MaskHint(e.state.Sentence.Language, e.state.Sentence.Text), nil
}

// End finishes the session from any phase. Outstanding work is cancelled and
// a turn without a scored response leaves no trace. The session is
// persisted when it holds at least one attempt; it is returned either way.
func (e *Engine) End(ctx context.Context) (practice.Session, error) {
	e.mu.Lock()
	if !e.state.Active() {
		e.mu.Unlock()
		return practice.Session{}, ErrNotActive
	}
	effects := e.apply(EventEnd{})
	sess := e.session.Clone()
	sess.EndedAt = e.now()
	e.session = practice.Session{}
	e.mu.Unlock()

	e.metrics.ActiveSessions.Add(ctx, -1)
	slog.Info("session ended", "session_id", sess.ID, "attempts", sess.TotalAttempts(),
		"correct", sess.CorrectAttempts(), "average_score", sess.AverageScore())

	if !hasEffect[PersistSession](effects) || len(sess.Attempts) == 0 {
		return sess, nil
	}
	if err := e.sessions.Append(ctx, sess); err != nil {
		return sess, fmt.Errorf("engine: persist session: %w", err)
	}
	e.mu.Lock()
	e.completed++
	e.mu.Unlock()
	return sess, nil
}

// UpdateSettings replaces the settings. Language and tier apply to the next
// sentence, speech rate and pitch to the next playback, the response timeout
// to the next voice response and the attempt limit to the next session.
func (e *Engine) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = s
	return nil
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Snapshot is a read-only view of the engine for display.
type Snapshot struct {
	Phase         Phase
	SessionID     string
	Language      practice.Language
	Tier          practice.Tier
	Attempt       int
	MaxAttempts   int
	Replays       int
	HintAvailable bool
	Recording     bool

	// Text is the current sentence once it has been revealed, else "".
	Text string

	TotalAttempts   int
	CorrectAttempts int
	AverageScore    float64
}

// Snapshot returns the current view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Phase:           e.state.Phase,
		SessionID:       e.session.ID,
		Language:        e.settings.Language,
		Tier:            e.settings.Tier,
		Attempt:         e.state.Attempt,
		MaxAttempts:     e.state.MaxAttempts,
		Replays:         e.state.Replays,
		HintAvailable:   e.state.HintAvailable(),
		Recording:       e.recording != nil,
		TotalAttempts:   e.session.TotalAttempts(),
		CorrectAttempts: e.session.CorrectAttempts(),
		AverageScore:    e.session.AverageScore(),
	}
	if e.state.Revealed {
		snap.Text = e.state.Sentence.Text
	}
	return snap
}

// Close ends a running session, waits for background work and closes the
// notification channel. It is safe to call more than once.
func (e *Engine) Close() error {
	var err error
	if _, endErr := e.End(context.Background()); endErr != nil && !errors.Is(endErr, ErrNotActive) {
		err = endErr
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return err
	}
	e.closed = true
	e.mu.Unlock()

	e.cancelBase()
	e.wg.Wait()
	close(e.notify)
	return err
}

// apply feeds ev to the state machine and carries out the effects that need
// no caller context. e.mu must be held.
func (e *Engine) apply(ev Event) []Effect {
	next, effects := Transition(e.state, ev)
	e.state = next
	for _, eff := range effects {
		switch eff := eff.(type) {
		case RequestSentence:
			e.requestSentence(eff.Turn)
		case PlaySentence:
			e.play(eff.Text)
		case CancelPlayback:
			e.stopPlayback()
		case CancelWork:
			if e.recording != nil {
				e.recording.Cancel()
				e.recording = nil
			}
			if e.cancelSession != nil {
				e.cancelSession()
			}
		}
	}
	return effects
}

func hasEffect[T Effect](effects []Effect) bool {
	for _, eff := range effects {
		if _, ok := eff.(T); ok {
			return true
		}
	}
	return false
}

// requestSentence fetches a sentence for turn in the background. e.mu must
// be held.
func (e *Engine) requestSentence(turn uint64) {
	ctx := e.sessionCtx
	req := e.planner.Next(e.settings.Language, e.settings.Tier, e.completed)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		var sentence practice.Sentence
		err := observe.Stage(ctx, "generate sentence", e.metrics.GenerationDuration, func(ctx context.Context) error {
			var err error
			sentence, err = e.generate(ctx, req)
			return err
		})
		if err != nil {
			// Only cancellation gets here; the turn is gone.
			return
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		prev := e.state
		e.apply(EventSentenceReady{Turn: turn, Sentence: sentence})
		if e.state == prev {
			slog.Debug("engine: dropped stale sentence", "turn", turn, "current_turn", prev.Turn)
			return
		}
		e.send(SentenceReady{Turn: turn})
	}()
}

// generate asks the primary generator and silently falls back to the offline
// generator on any failure other than cancellation.
func (e *Engine) generate(ctx context.Context, req practice.GenerationRequest) (practice.Sentence, error) {
	s, err := e.gen.Generate(ctx, req)
	if err == nil && strings.TrimSpace(s.Text) != "" {
		return s, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return practice.Sentence{}, ctxErr
	}
	if err == nil {
		err = generator.ErrEmptySentence
	}
	slog.Warn("engine: sentence generation failed, using offline generator",
		"err", practice.Fail(practice.GenerationFailure, "generate", err))
	e.metrics.RecordGenerationFallback(ctx)

	e.fallbackOnce.Do(func() {
		if e.fallback == nil {
			e.fallback = generator.NewOffline(generator.WithSeed(uint32(e.now().UnixNano())))
		}
	})
	return e.fallback.Generate(ctx, req)
}
