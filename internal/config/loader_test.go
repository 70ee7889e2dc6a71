package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/hearcoach/internal/config"
)

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		mention string
	}{
		{"log level", "server:\n  log_level: verbose\n", "log_level"},
		{"language", "practice:\n  language: fr\n", "practice.language"},
		{"tier", "practice:\n  tier: expert\n", "practice.tier"},
		{"negative goal", "practice:\n  daily_goal: -1m\n", "daily_goal"},
		{"attempts high", "practice:\n  max_attempts: 11\n", "max_attempts"},
		{"attempts low", "practice:\n  max_attempts: -1\n", "max_attempts"},
		{"speech rate", "practice:\n  speech_rate: 3\n", "speech_rate"},
		{"pitch", "practice:\n  pitch: 0.1\n", "pitch"},
		{"timeout", "practice:\n  response_timeout: -5s\n", "response_timeout"},
		{"generation timeout", "practice:\n  generation_timeout: -1s\n", "generation_timeout"},
		{"online without llm", "practice:\n  online_generation: true\n", "online_generation"},
		{"store driver", "store:\n  driver: mongo\n", "store.driver"},
		{"store dsn", "store:\n  driver: postgres\n", "store.dsn"},
		{"sample rate", "audio:\n  sample_rate: 1000\n", "sample_rate"},
		{"fallback name", "providers:\n  stt_fallbacks:\n    - model: x\n", "stt_fallbacks[0].name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.mention) {
				t.Errorf("error should mention %q, got: %v", tc.mention, err)
			}
		})
	}
}

func TestValidate_OnlineWithLLMIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
practice:
  online_generation: true
providers:
  llm:
    name: openai
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_UnknownProviderNameOnlyWarns(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  tts:
    name: my-custom-voice
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names must not fail validation: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
practice:
  tier: impossible
  pitch: 9
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "tier", "pitch"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"llm", "stt", "tts", "pronunciation"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}
