package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/provider/pronunciation"
	"github.com/MrWong99/hearcoach/pkg/provider/stt"
	"github.com/MrWong99/hearcoach/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by the Create methods when no factory
// is registered under the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to constructors for each capability. It is
// safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	llm           map[string]func(ProviderEntry) (llm.Provider, error)
	stt           map[string]func(ProviderEntry) (stt.Provider, error)
	tts           map[string]func(ProviderEntry) (tts.Provider, error)
	pronunciation map[string]func(ProviderEntry) (pronunciation.Rater, error)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		llm:           make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:           make(map[string]func(ProviderEntry) (stt.Provider, error)),
		tts:           make(map[string]func(ProviderEntry) (tts.Provider, error)),
		pronunciation: make(map[string]func(ProviderEntry) (pronunciation.Rater, error)),
	}
}

// RegisterLLM registers an LLM factory under name, replacing any previous one.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a speech recognizer factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a speech synthesis factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterPronunciation registers a pronunciation rater factory under name.
func (r *Registry) RegisterPronunciation(name string, factory func(ProviderEntry) (pronunciation.Rater, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pronunciation[name] = factory
}

// CreateLLM builds the LLM provider named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSTT builds the speech recognizer named by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return create(r, r.stt, "stt", entry)
}

// CreateTTS builds the speech synthesizer named by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return create(r, r.tts, "tts", entry)
}

// CreatePronunciation builds the pronunciation rater named by entry.Name.
func (r *Registry) CreatePronunciation(entry ProviderEntry) (pronunciation.Rater, error) {
	return create(r, r.pronunciation, "pronunciation", entry)
}

// Names returns the sorted names registered for kind ("llm", "stt", "tts"
// or "pronunciation").
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case "llm":
		names = keys(r.llm)
	case "stt":
		names = keys(r.stt)
	case "tts":
		names = keys(r.tts)
	case "pronunciation":
		names = keys(r.pronunciation)
	}
	sort.Strings(names)
	return names
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
