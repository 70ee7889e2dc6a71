package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/hearcoach/pkg/types"
)

// Recorder captures one spoken response from the microphone (or whatever
// stands in for it).
type Recorder interface {
	// Start begins capturing. The returned Recording must be stopped or
	// cancelled exactly once.
	Start(ctx context.Context) (Recording, error)
}

// Recording is an in-progress capture started by a [Recorder].
type Recording interface {
	// Stop ends the capture and returns the recorded clip. The clip's
	// [Clip.Duration] is the recorded duration used for usage accounting.
	Stop(ctx context.Context) (Clip, error)

	// Cancel aborts the capture and discards any audio. Safe to call after
	// Stop.
	Cancel()
}

// Player renders a clip to the output device.
type Player interface {
	// Play blocks until the clip has finished playing or ctx is cancelled.
	Play(ctx context.Context, clip Clip) error
}

// Synthesizer turns text into audio. Every tts.Provider satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (Clip, error)
}

// Speaker reads sentences aloud by synthesising and then playing them.
// It is safe for concurrent use when the underlying synthesizer and player are.
type Speaker struct {
	synth  Synthesizer
	player Player
	voices map[string]string
	now    func() time.Time
}

// SpeakerOption configures a [Speaker].
type SpeakerOption func(*Speaker)

// WithVoice selects the provider voice ID used for a BCP-47 language.
func WithVoice(language, voiceID string) SpeakerOption {
	return func(s *Speaker) { s.voices[language] = voiceID }
}

// NewSpeaker returns a Speaker backed by synth and player.
func NewSpeaker(synth Synthesizer, player Player, opts ...SpeakerOption) (*Speaker, error) {
	if synth == nil {
		return nil, errors.New("audio: speaker needs a synthesizer")
	}
	if player == nil {
		return nil, errors.New("audio: speaker needs a player")
	}
	s := &Speaker{
		synth:  synth,
		player: player,
		voices: make(map[string]string),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Speak synthesises text in the given language and plays it, returning how
// long audio was actually played. When ctx is cancelled mid-playback the
// partial duration is returned together with ctx.Err().
func (s *Speaker) Speak(ctx context.Context, text, language string, rate, pitch float64) (time.Duration, error) {
	clip, err := s.synth.Synthesize(ctx, text, types.VoiceProfile{
		ID:          s.voices[language],
		Language:    language,
		SpeedFactor: rate,
		PitchFactor: pitch,
	})
	if err != nil {
		return 0, fmt.Errorf("audio: synthesize: %w", err)
	}

	start := s.now()
	err = s.player.Play(ctx, clip)
	return min(s.now().Sub(start), clip.Duration()), err
}
