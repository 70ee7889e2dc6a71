// Package stt defines the Provider interface for Speech-to-Text backends.
//
// A learner's spoken response is captured as one bounded clip, so recognition
// is a single request/response call rather than a stream. Backends that only
// speak a streaming protocol (Deepgram) open a stream per clip, push the
// audio, and collect the final results before returning.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// ErrEmptyAudio is returned by Transcribe when the clip holds no samples.
var ErrEmptyAudio = errors.New("stt: empty audio clip")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in clip. language is a BCP-47 tag
	// ("en", "zh"); an empty string lets the backend auto-detect.
	//
	// A clip containing silence yields a transcript with empty Text and a
	// nil error. Transport and backend failures are returned as errors.
	Transcribe(ctx context.Context, clip audio.Clip, language string) (types.Transcript, error)
}

// RecognitionFormat is the PCM layout every backend in this module sends:
// 16 kHz mono, the native rate of both Whisper and Deepgram's nova models.
var RecognitionFormat = audio.Format{SampleRate: 16000, Channels: 1}
