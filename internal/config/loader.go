package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the provider names known per capability.
var ValidProviderNames = map[string][]string{
	"llm":           {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":           {"whisper", "deepgram"},
	"tts":           {"elevenlabs"},
	"pronunciation": {"phonetic"},
}

// Load reads, defaults and validates the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, expands ${ENV} references in API keys,
// applies defaults and validates the result. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(&cfg.Providers)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandSecrets(p *ProvidersConfig) {
	entries := []*ProviderEntry{&p.LLM, &p.STT, &p.TTS, &p.Pronunciation}
	for i := range p.LLMFallbacks {
		entries = append(entries, &p.LLMFallbacks[i])
	}
	for i := range p.STTFallbacks {
		entries = append(entries, &p.STTFallbacks[i])
	}
	for _, e := range entries {
		e.APIKey = os.ExpandEnv(e.APIKey)
	}
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	p := cfg.Practice
	if !p.Language.Valid() {
		errs = append(errs, fmt.Errorf("practice.language %q is invalid; valid values: zh, en", p.Language))
	}
	if !p.Tier.Valid() {
		errs = append(errs, fmt.Errorf("practice.tier %q is invalid; valid values: easy, medium, hard", p.Tier))
	}
	if p.DailyGoal < 0 {
		errs = append(errs, fmt.Errorf("practice.daily_goal %v must not be negative", p.DailyGoal))
	}
	if p.MaxAttempts < 1 || p.MaxAttempts > 10 {
		errs = append(errs, fmt.Errorf("practice.max_attempts %d is out of range [1, 10]", p.MaxAttempts))
	}
	if p.SpeechRate < 0.5 || p.SpeechRate > 2 {
		errs = append(errs, fmt.Errorf("practice.speech_rate %.2f is out of range [0.5, 2.0]", p.SpeechRate))
	}
	if p.Pitch < 0.5 || p.Pitch > 2 {
		errs = append(errs, fmt.Errorf("practice.pitch %.2f is out of range [0.5, 2.0]", p.Pitch))
	}
	if p.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("practice.response_timeout %v must be positive", p.ResponseTimeout))
	}
	if p.GenerationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("practice.generation_timeout %v must be positive", p.GenerationTimeout))
	}
	if p.OnlineGeneration && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("practice.online_generation requires providers.llm"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("pronunciation", cfg.Providers.Pronunciation.Name)
	for i, e := range cfg.Providers.LLMFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", e.Name)
	}
	for i, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", e.Name)
	}
	if cfg.Providers.STT.Name == "" && cfg.Providers.Pronunciation.Name != "" {
		slog.Warn("providers.pronunciation is configured without providers.stt; voice responses are unavailable")
	}

	switch {
	case !cfg.Store.Driver.IsValid():
		errs = append(errs, fmt.Errorf("store.driver %q is invalid; valid values: memory, postgres, sqlite", cfg.Store.Driver))
	case cfg.Store.Driver != StoreMemory && cfg.Store.DSN == "":
		errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", cfg.Store.Driver))
	}

	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}

	return errors.Join(errs...)
}

// validateProviderName warns about names not in [ValidProviderNames]; a
// third-party factory may still be registered under them.
func validateProviderName(kind, name string) {
	if name == "" || slices.Contains(ValidProviderNames[kind], name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", ValidProviderNames[kind],
	)
}
