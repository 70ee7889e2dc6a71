// Package generator produces practice sentences.
//
// Three implementations satisfy [Generator]:
//
//   - [Offline] samples pre-built corpus items (and can optionally walk a
//     token-level Markov chain). It never fails.
//   - [Remote] asks an LLM for a fresh sentence.
//   - [Chain] tries remote generators first when the user opted in, and
//     silently falls back to an [Offline] generator on any failure.
//
// [Planner] builds the per-turn [practice.GenerationRequest] from the user's
// history.
package generator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/hearcoach/internal/corpus"
	"github.com/MrWong99/hearcoach/internal/practice"
)

// Generator produces one sentence per request.
type Generator interface {
	Generate(ctx context.Context, req practice.GenerationRequest) (practice.Sentence, error)
}

// ErrEmptySentence is returned when a generator produced no usable text.
var ErrEmptySentence = errors.New("generator: empty sentence")

// TestConnection runs one tiny generation through gen and reports any
// problem as a [practice.ConfigurationFailure]. It is meant for "test
// connection" actions in settings screens, not for the session flow.
func TestConnection(ctx context.Context, gen Generator) error {
	if gen == nil {
		return practice.Fail(practice.ConfigurationFailure, "test connection",
			errors.New("no online generator configured"))
	}
	_, err := gen.Generate(ctx, practice.GenerationRequest{
		Language:      practice.English,
		Tier:          practice.Easy,
		DesiredLength: practice.LengthWord,
		VocabBucket:   bucket(practice.Easy, practice.LengthWord),
		Topic:         "daily life",
	})
	if err != nil {
		return practice.Fail(practice.ConfigurationFailure, "test connection", err)
	}
	return nil
}

// Planner derives generation requests from the number of sessions the user
// has completed. It draws topics from [practice.Topics] with a seeded
// [corpus.Random], so a fixed seed yields a fixed topic sequence.
type Planner struct {
	mu  sync.Mutex
	rng *corpus.Random
}

// NewPlanner returns a Planner seeded with seed (0 selects the default seed).
func NewPlanner(seed uint32) *Planner {
	return &Planner{rng: corpus.NewRandom(seed)}
}

// Next returns the request for the next turn.
func (p *Planner) Next(lang practice.Language, tier practice.Tier, completedSessions int) practice.GenerationRequest {
	p.mu.Lock()
	topic := corpus.Choice(p.rng, practice.Topics)
	p.mu.Unlock()

	length := practice.LengthForSessions(completedSessions)
	return practice.GenerationRequest{
		Language:      lang,
		Tier:          tier,
		DesiredLength: length,
		VocabBucket:   bucket(tier, length),
		Topic:         topic,
	}
}

func bucket(tier practice.Tier, length practice.Length) string {
	return fmt.Sprintf("%s-%s", tier, length)
}
