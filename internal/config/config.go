// Package config provides the configuration schema, loader, provider
// registry and file watcher for HearCoach.
package config

import (
	"time"

	"github.com/MrWong99/hearcoach/internal/practice"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StoreDriver selects where sessions and daily usage are kept.
type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StorePostgres StoreDriver = "postgres"
	StoreSQLite   StoreDriver = "sqlite"
)

// IsValid reports whether d is a recognised driver.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreMemory, StorePostgres, StoreSQLite:
		return true
	}
	return false
}

// Config is the root configuration, usually loaded with [Load].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Practice  PracticeConfig  `yaml:"practice"`
	Providers ProvidersConfig `yaml:"providers"`
	Store     StoreConfig     `yaml:"store"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig holds logging and admin endpoint settings.
type ServerConfig struct {
	LogLevel LogLevel `yaml:"log_level"`

	// AdminAddr is where /healthz, /readyz and /metrics are served
	// (e.g. ":9090"). Empty disables the admin server.
	AdminAddr string `yaml:"admin_addr"`
}

// PracticeConfig holds the learner's practice settings. Every field except
// CorpusPath, ChainWalk and Seed can be changed while the app is running.
type PracticeConfig struct {
	Language practice.Language `yaml:"language"`
	Tier     practice.Tier     `yaml:"tier"`

	// DailyGoal is the practice time per calendar day that triggers the
	// goal notification. Zero after defaults disables the notification.
	DailyGoal time.Duration `yaml:"daily_goal"`

	MaxAttempts int `yaml:"max_attempts"`

	// OnlineGeneration opts in to sentence generation by the configured LLM.
	// Offline generation is used otherwise, or whenever the LLM fails.
	OnlineGeneration bool `yaml:"online_generation"`

	SpeechRate      float64       `yaml:"speech_rate"`
	Pitch           float64       `yaml:"pitch"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`

	// GenerationTimeout bounds one online generation request. Past it the
	// sentence comes from the offline generator.
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// CorpusPath is a directory of corpus files (zh.yaml, en.yaml). Languages
	// without a file use the built-in corpus.
	CorpusPath string `yaml:"corpus_path"`

	// ChainWalk makes the offline generator build English sentences word by
	// word instead of returning corpus entries verbatim.
	ChainWalk bool `yaml:"chain_walk"`

	// Seed fixes the offline generator's random sequence. Zero picks the
	// default seed.
	Seed uint32 `yaml:"seed"`
}

// ProvidersConfig selects the implementation of every capability. Each entry
// names a provider registered in the [Registry]; an empty name disables the
// capability.
type ProvidersConfig struct {
	LLM           ProviderEntry `yaml:"llm"`
	STT           ProviderEntry `yaml:"stt"`
	TTS           ProviderEntry `yaml:"tts"`
	Pronunciation ProviderEntry `yaml:"pronunciation"`

	// LLMFallbacks and STTFallbacks are tried in order when the primary
	// provider fails or its circuit breaker is open.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
type ProviderEntry struct {
	Name string `yaml:"name"`

	// APIKey may reference an environment variable as ${NAME}.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	Model string `yaml:"model"`

	// Options holds provider-specific values (for example "voice_id" for
	// TTS or "backend" for the any-llm provider).
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] when it is a string.
func (e ProviderEntry) StringOption(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// FloatOption returns Options[key] as a float64 when it is numeric.
func (e ProviderEntry) FloatOption(key string) (float64, bool) {
	switch v := e.Options[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver StoreDriver `yaml:"driver"`

	// DSN is a PostgreSQL connection string for the postgres driver or a
	// database file path for the sqlite driver.
	DSN string `yaml:"dsn"`
}

// AudioConfig configures the command-line audio bridge.
type AudioConfig struct {
	// RecordingsDir holds temporary WAV files. Defaults to the OS temp dir.
	RecordingsDir string `yaml:"recordings_dir"`

	// RecordCommand records from the microphone into the WAV path given as
	// its last argument until interrupted (e.g. ["arecord", "-q", "-f", "S16_LE"]).
	RecordCommand []string `yaml:"record_command"`

	// PlayCommand plays the WAV path given as its last argument
	// (e.g. ["aplay", "-q"]).
	PlayCommand []string `yaml:"play_command"`

	SampleRate int `yaml:"sample_rate"`
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	p := &cfg.Practice
	if p.Language == "" {
		p.Language = practice.English
	}
	if p.Tier == "" {
		p.Tier = practice.Easy
	}
	if p.DailyGoal == 0 {
		p.DailyGoal = 30 * time.Minute
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	if p.SpeechRate == 0 {
		p.SpeechRate = 1
	}
	if p.Pitch == 0 {
		p.Pitch = 1
	}
	if p.ResponseTimeout == 0 {
		p.ResponseTimeout = 15 * time.Second
	}
	if p.GenerationTimeout == 0 {
		p.GenerationTimeout = 10 * time.Second
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
}
