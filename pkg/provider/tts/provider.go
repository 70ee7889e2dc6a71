// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and turns
// one practice sentence into one PCM clip. Sentences are short, so the whole
// clip is assembled before playback starts; providers that stream internally
// buffer the chunks.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// Provider is the abstraction over any TTS backend. Every Provider satisfies
// [audio.Synthesizer].
type Provider interface {
	// Synthesize renders text with the given voice. voice.SpeedFactor and
	// voice.PitchFactor are hints; providers apply what they support and
	// ignore the rest. An empty voice.ID selects the provider's default voice.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (audio.Clip, error)
}

// Voice is one entry of a provider's voice catalogue.
type Voice struct {
	ID     string
	Name   string
	Labels map[string]string
}

// VoiceLister is implemented by providers that can enumerate their voices.
// It doubles as a cheap connectivity and credential check.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]Voice, error)
}
