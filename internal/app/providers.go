package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/hearcoach/internal/config"
	"github.com/MrWong99/hearcoach/internal/observe"
	"github.com/MrWong99/hearcoach/internal/resilience"
	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/hearcoach/pkg/provider/llm/openai"
	"github.com/MrWong99/hearcoach/pkg/provider/pronunciation"
	"github.com/MrWong99/hearcoach/pkg/provider/pronunciation/phonetic"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/provider/stt/deepgram"
	"github.com/MrWong99/hearcoach/pkg/provider/stt/whisper"
	"github.com/MrWong99/hearcoach/pkg/provider/tts"
	"github.com/MrWong99/hearcoach/pkg/provider/tts/elevenlabs"
)

// RegisterBuiltinProviders wires every provider that ships with HearCoach
// into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := entry.StringOption("organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if d, ok := entryTimeout(entry); ok {
			opts = append(opts, oaillm.WithTimeout(d))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// Every other backend goes through any-llm-go. Local backends take the
	// server address from BaseURL and need no key.
	for _, backend := range anyllm.Backends {
		if backend == "openai" {
			continue
		}
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			} else if anyllm.RequiresAPIKey(backend) {
				return nil, fmt.Errorf("%s: %w", backend, llm.ErrMissingCredentials)
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		if d, ok := entryTimeout(entry); ok {
			opts = append(opts, deepgram.WithTimeout(d))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if path := entry.StringOption("path"); path != "" {
			opts = append(opts, whisper.WithPath(path))
		}
		if d, ok := entryTimeout(entry); ok {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := entry.StringOption("output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		if voice := entry.StringOption("voice_id"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if d, ok := entryTimeout(entry); ok {
			opts = append(opts, elevenlabs.WithTimeout(d))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Pronunciation ─────────────────────────────────────────────────────────

	reg.RegisterPronunciation("phonetic", func(entry config.ProviderEntry) (pronunciation.Rater, error) {
		var opts []phonetic.Option
		if th, ok := entry.FloatOption("match_threshold"); ok {
			if th <= 0 || th > 1 {
				return nil, fmt.Errorf("phonetic: match_threshold %.2f is out of range (0, 1]", th)
			}
			opts = append(opts, phonetic.WithMatchThreshold(th))
		}
		return phonetic.New(opts...), nil
	})

	for _, kind := range []string{"llm", "stt", "tts", "pronunciation"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// entryTimeout reads the "timeout_seconds" option shared by the network
// providers. Missing or non-positive values keep the provider's default.
func entryTimeout(entry config.ProviderEntry) (time.Duration, bool) {
	sec, ok := entry.FloatOption("timeout_seconds")
	if !ok || sec <= 0 {
		return 0, false
	}
	return time.Duration(sec * float64(time.Second)), true
}

// NamedLLM is an LLM provider together with its configured name.
type NamedLLM struct {
	Name     string
	Provider llm.Provider
}

// BuildLLMs creates the primary LLM and its fallbacks in priority order.
// Entries whose provider is not registered are skipped with a warning; an
// empty result means no LLM is configured.
func BuildLLMs(cfg *config.Config, reg *config.Registry) ([]NamedLLM, error) {
	entries := append([]config.ProviderEntry{cfg.Providers.LLM}, cfg.Providers.LLMFallbacks...)
	var out []NamedLLM
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		p, err := reg.CreateLLM(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered, skipping", "kind", "llm", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: create llm provider %q: %w", entry.Name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		out = append(out, NamedLLM{Name: entry.Name, Provider: p})
	}
	return out, nil
}

// ComposeLLM folds llms into one provider that fails over in order, or
// returns nil when llms is empty.
func ComposeLLM(llms []NamedLLM, fc resilience.FallbackConfig) llm.Provider {
	if len(llms) == 0 {
		return nil
	}
	fb := resilience.NewLLMFallback(fc)
	for _, l := range llms {
		fb.Add(l.Name, l.Provider)
	}
	return fb
}

// buildRecognizer creates the primary recogniser plus fallbacks behind one
// [resilience.STTFallback]. It returns nil when no recogniser is configured.
func buildRecognizer(cfg *config.Config, reg *config.Registry, fc resilience.FallbackConfig) (stt.Provider, error) {
	entries := append([]config.ProviderEntry{cfg.Providers.STT}, cfg.Providers.STTFallbacks...)
	fb := resilience.NewSTTFallback(fc)
	n := 0
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		p, err := reg.CreateSTT(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("provider not registered, skipping", "kind", "stt", "name", entry.Name)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("app: create stt provider %q: %w", entry.Name, err)
		}
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
		fb.Add(entry.Name, p)
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return fb, nil
}

// FallbackConfig returns the breaker template used for every provider group;
// state changes are logged and counted.
func FallbackConfig(m *observe.Metrics) resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  3,
			ResetTimeout: 30 * time.Second,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state change", "provider", name, "from", from, "to", to)
				m.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
			},
		},
		OnFailover: func(name string, err error) {
			slog.Warn("provider failed, trying next", "provider", name, "err", err)
		},
	}
}
