// Package llm defines the Provider interface for Large Language Model backends.
//
// HearCoach uses an LLM for two jobs: generating a fresh practice sentence
// for a turn (when the user opted in to online generation) and padding corpus
// files offline. Both need a single non-streaming completion, so that is the
// whole surface of [Provider].
//
// Implementors must be safe for concurrent use and must return promptly when
// the supplied context is cancelled.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/hearcoach/pkg/types"
)

// ErrMissingCredentials is returned by constructors when no API key is set
// for a backend that requires one.
var ErrMissingCredentials = errors.New("llm: missing API credentials")

// ErrTruncated is returned when the reply stopped at the token limit.
var ErrTruncated = errors.New("llm: reply truncated at token limit")

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional instruction sent as a leading system
	// message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is typically
	// from the user.
	Messages []types.Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero leaves the
	// provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int
}

// CompletionResponse is the model's full reply.
type CompletionResponse struct {
	// Content is the text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage types.Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() types.ModelCapabilities
}

// ExtractJSON returns the outermost {...} object embedded in content. Models
// asked for "JSON only" still occasionally wrap the object in a Markdown
// fence or a sentence; the caller decodes whatever this returns.
func ExtractJSON(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return "", false
	}
	return content[start : end+1], true
}
