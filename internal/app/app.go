// Package app wires all HearCoach subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates providers, the store,
// the sentence generators, the usage tracker and the session engine; Reload
// applies hot-reloadable config changes; Shutdown tears everything down in
// reverse order.
//
// For testing, inject doubles via functional options (WithStore, WithSpeaker,
// WithRecorder, ...). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/MrWong99/hearcoach/internal/config"
	"github.com/MrWong99/hearcoach/internal/corpus"
	"github.com/MrWong99/hearcoach/internal/engine"
	"github.com/MrWong99/hearcoach/internal/generator"
	"github.com/MrWong99/hearcoach/internal/health"
	"github.com/MrWong99/hearcoach/internal/observe"
	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/internal/usage"
	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/audio/wavfile"
	"github.com/MrWong99/hearcoach/pkg/store"
	"github.com/MrWong99/hearcoach/pkg/store/memstore"
	"github.com/MrWong99/hearcoach/pkg/store/postgres"
	"github.com/MrWong99/hearcoach/pkg/store/sqlite"
)

// App owns every subsystem of a practice run.
type App struct {
	cfg      *config.Config
	registry *config.Registry
	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	store    store.Store
	speaker  engine.Speaker
	recorder audio.Recorder
	chain    *generator.Chain
	tracker  *usage.Tracker
	engine   *engine.Engine
	checkers []health.Checker

	mu sync.Mutex // guards cfg during Reload

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of opening the configured driver. The
// App does not close an injected store.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSpeaker injects the sentence speaker instead of building one from the
// TTS provider and the audio player.
func WithSpeaker(s engine.Speaker) Option {
	return func(a *App) { a.speaker = s }
}

// WithRecorder injects the microphone recorder.
func WithRecorder(r audio.Recorder) Option {
	return func(a *App) { a.recorder = r }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets Reload change the level of the root logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New builds an App from cfg. Provider names are resolved through reg.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	a := &App{cfg: cfg, registry: reg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, a.abort(fmt.Errorf("app: init store: %w", err))
	}

	// ── 2. Sentence generation ───────────────────────────────────────────
	if err := a.initGenerator(); err != nil {
		return nil, a.abort(fmt.Errorf("app: init generator: %w", err))
	}

	// ── 3. Audio and response providers ──────────────────────────────────
	engineOpts, err := a.initProviders()
	if err != nil {
		return nil, a.abort(fmt.Errorf("app: init providers: %w", err))
	}

	// ── 4. Usage tracker ─────────────────────────────────────────────────
	a.tracker = usage.New(a.store, cfg.Practice.DailyGoal)

	// ── 5. Engine ────────────────────────────────────────────────────────
	engineOpts = append(engineOpts,
		engine.WithPlanner(generator.NewPlanner(cfg.Practice.Seed)),
		engine.WithUsage(a.tracker),
		engine.WithMetrics(a.metrics),
		engine.WithSettings(settingsFrom(cfg.Practice)),
	)
	a.engine, err = engine.New(a.chain, a.store, engineOpts...)
	if err != nil {
		return nil, a.abort(fmt.Errorf("app: init engine: %w", err))
	}
	a.closers = append([]func() error{a.engine.Close}, a.closers...)

	slog.Info("app ready",
		"language", cfg.Practice.Language,
		"tier", cfg.Practice.Tier,
		"online_generation", a.chain.Online(),
		"store", cfg.Store.Driver,
	)
	return a, nil
}

// abort runs the closers registered so far and returns err.
func (a *App) abort(err error) error {
	for _, c := range a.closers {
		if cerr := c(); cerr != nil {
			slog.Warn("cleanup after failed start", "err", cerr)
		}
	}
	return err
}

func (a *App) initStore(ctx context.Context) error {
	if a.store == nil {
		var err error
		switch a.cfg.Store.Driver {
		case config.StorePostgres:
			a.store, err = postgres.NewStore(ctx, a.cfg.Store.DSN)
		case config.StoreSQLite:
			a.store, err = sqlite.Open(ctx, a.cfg.Store.DSN)
		default:
			a.store = memstore.New()
		}
		if err != nil {
			a.store = nil
			return err
		}
		a.closers = append(a.closers, a.store.Close)
		slog.Info("store opened", "driver", a.cfg.Store.Driver)
	}
	if p, ok := a.store.(health.Pinger); ok {
		a.checkers = append(a.checkers, health.PingChecker("store", p))
	}
	return nil
}

func (a *App) initGenerator() error {
	p := a.cfg.Practice
	offlineOpts := []generator.OfflineOption{
		generator.WithSeed(p.Seed),
		generator.WithChainWalk(p.ChainWalk),
	}
	if p.CorpusPath != "" {
		for _, lang := range practice.Languages {
			path := corpus.FileName(p.CorpusPath, lang)
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				slog.Debug("no corpus file, using built-in corpus", "language", lang, "path", path)
				continue
			}
			c, err := corpus.LoadFile(path, lang)
			if err != nil {
				return err
			}
			slog.Info("corpus loaded", "language", c.Language, "path", path, "items", c.Len())
			offlineOpts = append(offlineOpts, generator.WithCorpus(c))
		}
	}
	offline := generator.NewOffline(offlineOpts...)

	llms, err := BuildLLMs(a.cfg, a.registry)
	if err != nil {
		return err
	}
	chainOpts := []generator.ChainOption{
		generator.WithOnline(p.OnlineGeneration),
		generator.WithGenerationTimeout(p.GenerationTimeout),
		generator.WithFallbackConfig(FallbackConfig(a.metrics)),
		generator.WithOnFallback(func(error) {
			a.metrics.RecordGenerationFallback(context.Background())
		}),
	}
	for _, l := range llms {
		chainOpts = append(chainOpts, generator.WithRemote(l.Name, generator.NewRemote(l.Provider)))
	}
	a.chain = generator.NewChain(offline, chainOpts...)
	return nil
}

func (a *App) initProviders() ([]engine.Option, error) {
	var opts []engine.Option
	pc := a.cfg.Providers

	if a.speaker == nil && pc.TTS.Name != "" {
		synth, err := a.registry.CreateTTS(pc.TTS)
		if err != nil {
			return nil, fmt.Errorf("create tts provider %q: %w", pc.TTS.Name, err)
		}
		player, err := wavfile.NewPlayer(a.audioDir(), wavfile.WithPlayCommand(a.cfg.Audio.PlayCommand))
		if err != nil {
			return nil, err
		}
		var voices []audio.SpeakerOption
		for _, lang := range practice.Languages {
			if id := pc.TTS.StringOption("voice_" + string(lang)); id != "" {
				voices = append(voices, audio.WithVoice(string(lang), id))
			}
		}
		speaker, err := audio.NewSpeaker(synth, player, voices...)
		if err != nil {
			return nil, err
		}
		a.speaker = speaker
		slog.Info("provider created", "kind", "tts", "name", pc.TTS.Name)
	}
	if a.speaker != nil {
		opts = append(opts, engine.WithSpeaker(a.speaker))
	} else {
		slog.Warn("no speech synthesis configured; sentences will not be read aloud")
	}

	if a.recorder == nil && len(a.cfg.Audio.RecordCommand) > 0 {
		rec, err := wavfile.NewRecorder(a.audioDir(), a.cfg.Audio.RecordCommand,
			audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: 1})
		if err != nil {
			return nil, err
		}
		a.recorder = rec
	}
	if a.recorder != nil {
		opts = append(opts, engine.WithRecorder(a.recorder))
	}

	recognizer, err := buildRecognizer(a.cfg, a.registry, FallbackConfig(a.metrics))
	if err != nil {
		return nil, err
	}
	if recognizer != nil {
		opts = append(opts, engine.WithRecognizer(pc.STT.Name, recognizer))
	}

	if pc.Pronunciation.Name != "" {
		rater, err := a.registry.CreatePronunciation(pc.Pronunciation)
		if err != nil {
			return nil, fmt.Errorf("create pronunciation rater %q: %w", pc.Pronunciation.Name, err)
		}
		opts = append(opts, engine.WithRater(pc.Pronunciation.Name, rater))
		slog.Info("provider created", "kind", "pronunciation", "name", pc.Pronunciation.Name)
	}
	return opts, nil
}

func (a *App) audioDir() string {
	if a.cfg.Audio.RecordingsDir != "" {
		return a.cfg.Audio.RecordingsDir
	}
	return os.TempDir()
}

// settingsFrom maps the practice config onto engine settings.
func settingsFrom(p config.PracticeConfig) engine.Settings {
	return engine.Settings{
		Language:        p.Language,
		Tier:            p.Tier,
		MaxAttempts:     p.MaxAttempts,
		SpeechRate:      p.SpeechRate,
		Pitch:           p.Pitch,
		ResponseTimeout: p.ResponseTimeout,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Engine returns the session engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Tracker returns the daily usage tracker.
func (a *App) Tracker() *usage.Tracker { return a.tracker }

// Health returns the probe handler for the admin server.
func (a *App) Health() *health.Handler { return health.New(a.checkers...) }

// TestConnection runs one generation through the configured LLMs, whether
// or not online generation is enabled.
func (a *App) TestConnection(ctx context.Context) error {
	return generator.TestConnection(ctx, a.chain.Remote())
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable differences between the running config
// and next. Settings that need a restart are logged and otherwise ignored.
func (a *App) Reload(next *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d := config.Diff(a.cfg, next)
	for _, name := range d.RestartRequired {
		slog.Warn("config change needs a restart to take effect", "setting", name)
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(ParseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PracticeChanged {
		if err := a.engine.UpdateSettings(settingsFrom(d.Practice)); err != nil {
			return fmt.Errorf("app: reload: %w", err)
		}
		if d.DailyGoalChanged {
			a.tracker.SetGoal(d.Practice.DailyGoal)
		}
		if d.OnlineChanged {
			a.chain.SetOnline(d.Practice.OnlineGeneration)
		}
		a.chain.SetGenerationTimeout(d.Practice.GenerationTimeout)
		slog.Info("practice settings reloaded",
			"language", d.Practice.Language,
			"tier", d.Practice.Tier,
			"daily_goal", d.Practice.DailyGoal,
			"online_generation", d.Practice.OnlineGeneration,
		)
	}

	// Keep restart-only values so later diffs keep reporting them.
	merged := *a.cfg
	merged.Server.LogLevel = next.Server.LogLevel
	merged.Practice = mergePractice(a.cfg.Practice, next.Practice)
	a.cfg = &merged
	return nil
}

func mergePractice(cur, next config.PracticeConfig) config.PracticeConfig {
	next.CorpusPath = cur.CorpusPath
	next.ChainWalk = cur.ChainWalk
	next.Seed = cur.Seed
	return next
}

// ParseLevel maps a config log level to its slog level. Unknown values map
// to Info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends a running session (persisting it when it has attempts) and
// closes every subsystem. It respects the context deadline: closers left
// when ctx expires are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				errs = append(errs, err)
				return
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
				errs = append(errs, err)
			}
		}
		slog.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
