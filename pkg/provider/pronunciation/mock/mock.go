// Package mock provides a test double for the pronunciation.Rater interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/pronunciation"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// RateCall records a single invocation of Rate.
type RateCall struct {
	Clip       audio.Clip
	Reference  string
	Transcript string
}

// Rater is a mock implementation of pronunciation.Rater.
type Rater struct {
	mu sync.Mutex

	// Scores is returned by Rate when Err is nil.
	Scores types.PronunciationScores

	// Err, if non-nil, is returned by Rate.
	Err error

	// Calls records every call to Rate.
	Calls []RateCall
}

var _ pronunciation.Rater = (*Rater)(nil)

// Rate records the call and returns Scores, Err.
func (r *Rater) Rate(_ context.Context, clip audio.Clip, reference, transcript string) (types.PronunciationScores, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, RateCall{Clip: clip, Reference: reference, Transcript: transcript})
	if r.Err != nil {
		return types.PronunciationScores{}, r.Err
	}
	return r.Scores, nil
}

// CallCount returns the number of Rate calls so far.
func (r *Rater) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// Reset clears all recorded calls.
func (r *Rater) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = nil
}
