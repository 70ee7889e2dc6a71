// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify the CompletionRequests a component
// sends and to feed controlled replies without a live backend.
//
// Example:
//
//	p := &mock.Provider{Replies: []string{`{"text": "Hello there."}`}}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/types"
)

var _ llm.Provider = (*Provider)(nil)

// Provider is a mock implementation of llm.Provider.
//
// Complete answers, in order of precedence: CompleteFunc when set, CompleteErr
// when set, the next entry of Replies (the last entry repeats once the list is
// exhausted), or an empty reply.
type Provider struct {
	mu sync.Mutex

	// CompleteFunc, when set, computes the reply.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// CompleteErr is returned by Complete when non-nil.
	CompleteErr error

	// Replies is the scripted sequence of reply contents.
	Replies []string

	// CapabilitiesResult is returned by Capabilities.
	CapabilitiesResult types.ModelCapabilities

	// Requests records every CompletionRequest passed to Complete.
	Requests []llm.CompletionRequest

	next int
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	fn, err := p.CompleteFunc, p.CompleteErr
	var content string
	if len(p.Replies) > 0 {
		content = p.Replies[min(p.next, len(p.Replies)-1)]
		p.next++
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return &llm.CompletionResponse{Content: content}, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CapabilitiesResult
}

// CallCount returns the number of Complete calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

// Reset clears recorded requests and rewinds Replies.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = nil
	p.next = 0
}
