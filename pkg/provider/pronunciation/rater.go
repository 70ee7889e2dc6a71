// Package pronunciation defines the Rater interface for pronunciation
// assessment backends.
//
// A Rater compares one recorded response against the sentence the learner was
// asked to repeat and returns four 0..100 scores (accuracy, fluency,
// completeness and prosody). The transcript produced by the speech recogniser
// for the same clip is passed in so that text-only raters do not have to
// recognise the audio again.
package pronunciation

import (
	"context"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// Rater is the abstraction over any pronunciation assessment backend.
//
// Implementations must be safe for concurrent use and must return promptly
// when ctx is cancelled. Returned scores must already be clamped to 0..100.
type Rater interface {
	Rate(ctx context.Context, clip audio.Clip, reference, transcript string) (types.PronunciationScores, error)
}
