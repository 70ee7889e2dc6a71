package resilience

import (
	"context"

	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// LLMFallback implements [llm.Provider] with failover across several LLM
// backends, e.g. a hosted model first and a local Ollama model second.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an empty LLMFallback; register backends with Add.
func NewLLMFallback(cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup[llm.Provider](cfg)}
}

// Add registers a backend. The first one added is the primary.
func (f *LLMFallback) Add(name string, p llm.Provider) {
	f.group.Add(name, p)
}

// Complete sends the request to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary's capabilities; they are static metadata
// and take no part in failover.
func (f *LLMFallback) Capabilities() types.ModelCapabilities {
	if p := f.group.Primary(); p != nil {
		return p.Capabilities()
	}
	return types.ModelCapabilities{}
}
