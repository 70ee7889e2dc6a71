// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to script recognition results and to inspect which clips and
// languages a caller submitted.
//
// Example:
//
//	p := &mock.Provider{Result: types.Transcript{Text: "hello", Confidence: 0.9}}
//	tr, _ := p.Transcribe(ctx, clip, "en")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	Clip     audio.Clip
	Language string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when Err is nil.
	Result types.Transcript

	// Err, if non-nil, is returned by Transcribe.
	Err error

	// Block makes Transcribe wait until its context is cancelled.
	Block bool

	// Calls records every call to Transcribe.
	Calls []TranscribeCall
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns Result, Err.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, language string) (types.Transcript, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, TranscribeCall{Clip: clip, Language: language})
	res, err, block := p.Result, p.Err, p.Block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return types.Transcript{}, ctx.Err()
	}
	if err != nil {
		return types.Transcript{}, err
	}
	return res, nil
}

// SetResult replaces the scripted transcript. Thread-safe.
func (p *Provider) SetResult(tr types.Transcript, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Result, p.Err = tr, err
}

// CallCount returns the number of Transcribe calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
