// Package mock provides a test double for [generator.Generator].
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hearcoach/internal/generator"
	"github.com/MrWong99/hearcoach/internal/practice"
)

var _ generator.Generator = (*Generator)(nil)

// Generator is a mock implementation of generator.Generator.
//
// Generate answers, in order of precedence: Err when set, the next entry of
// Texts (the last entry repeats once the list is exhausted), or "hello".
// When Block is set it waits for ctx or for a value on Release first.
type Generator struct {
	mu sync.Mutex

	// Texts is the scripted sequence of sentence texts.
	Texts []string

	// Err is returned by Generate when non-nil.
	Err error

	// Block makes Generate wait until ctx is done or Release receives.
	Block bool

	// Release unblocks one blocked Generate call. Optional.
	Release chan struct{}

	// Requests records every request passed to Generate.
	Requests []practice.GenerationRequest

	next int
}

// Generate implements generator.Generator.
func (g *Generator) Generate(ctx context.Context, req practice.GenerationRequest) (practice.Sentence, error) {
	g.mu.Lock()
	g.Requests = append(g.Requests, req)
	text := "hello"
	if len(g.Texts) > 0 {
		text = g.Texts[min(g.next, len(g.Texts)-1)]
		g.next++
	}
	err, block, release := g.Err, g.Block, g.Release
	g.mu.Unlock()

	if block {
		select {
		case <-ctx.Done():
			return practice.Sentence{}, ctx.Err()
		case <-release:
		}
	}
	if err != nil {
		return practice.Sentence{}, err
	}
	return practice.NewSentence(text, req.Language, req.Tier, req.VocabBucket, req.Topic), nil
}

// CallCount returns the number of Generate calls so far.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

// SetBlock changes Block under the mock's lock.
func (g *Generator) SetBlock(block bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Block = block
}

// Reset clears recorded requests and rewinds Texts.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = nil
	g.next = 0
}
