package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/types"
)

const (
	defaultRemoteTemperature = 0.9
	defaultRemoteMaxTokens   = 200
)

// Remote asks an LLM for each sentence.
type Remote struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
}

var _ Generator = (*Remote)(nil)

// RemoteOption configures a [Remote] generator.
type RemoteOption func(*Remote)

// WithRemoteTemperature sets the sampling temperature. Defaults to 0.9.
func WithRemoteTemperature(t float64) RemoteOption {
	return func(r *Remote) { r.temperature = t }
}

// WithRemoteMaxTokens caps the reply length. Defaults to 200.
func WithRemoteMaxTokens(n int) RemoteOption {
	return func(r *Remote) { r.maxTokens = n }
}

// NewRemote returns a Remote generator backed by p.
func NewRemote(p llm.Provider, opts ...RemoteOption) *Remote {
	r := &Remote{
		llm:         p,
		temperature: defaultRemoteTemperature,
		maxTokens:   defaultRemoteMaxTokens,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Generate implements [Generator].
func (r *Remote) Generate(ctx context.Context, req practice.GenerationRequest) (practice.Sentence, error) {
	if r.llm == nil {
		return practice.Sentence{}, fmt.Errorf("generator: remote: %w", llm.ErrMissingCredentials)
	}
	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: remoteSystemPrompt,
		Messages:     []types.Message{{Role: types.RoleUser, Content: remotePrompt(req)}},
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
	})
	if err != nil {
		return practice.Sentence{}, fmt.Errorf("generator: remote: %w", err)
	}
	text, err := parseSentence(resp.Content)
	if err != nil {
		return practice.Sentence{}, fmt.Errorf("generator: remote: %w", err)
	}
	return practice.NewSentence(text, req.Language, req.Tier, req.VocabBucket, req.Topic), nil
}

func parseSentence(content string) (string, error) {
	raw, ok := llm.ExtractJSON(content)
	if !ok {
		return "", errors.New("reply contains no JSON object")
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", ErrEmptySentence
	}
	return text, nil
}

const remoteSystemPrompt = `You write short practice sentences for a listen-and-repeat language trainer.
Reply with a single JSON object of the form {"text": "<sentence>"} and nothing else.
Use natural, everyday language a learner would hear. No translations, no pinyin, no quotes inside the text.`

var languageNames = map[practice.Language]string{
	practice.Chinese: "Simplified Chinese",
	practice.English: "English",
}

var tierNotes = map[practice.Tier]string{
	practice.Easy:   "beginner vocabulary, very common words",
	practice.Medium: "intermediate vocabulary, simple grammar",
	practice.Hard:   "advanced vocabulary, richer grammar and imagery",
}

func remotePrompt(req practice.GenerationRequest) string {
	lo, hi := req.DesiredLength.TokenBand()
	unit := "words"
	if req.Language.Logographic() {
		unit = "characters"
	}
	name, ok := languageNames[req.Language]
	if !ok {
		name = string(req.Language)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s\n", name)
	fmt.Fprintf(&b, "Level: %s (%s)\n", req.Tier, tierNotes[req.Tier])
	if lo == hi {
		fmt.Fprintf(&b, "Length: exactly %d %s\n", lo, strings.TrimSuffix(unit, "s"))
	} else {
		fmt.Fprintf(&b, "Length: %d to %d %s\n", lo, hi, unit)
	}
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	}
	if req.DesiredLength == practice.LengthWord {
		b.WriteString("Return a single word or fixed expression without punctuation.\n")
	}
	return b.String()
}
