// Package types defines the value types shared by the HearCoach providers and
// the practice core.
//
// Each provider package defines its own request/response shapes; the types
// here are the ones that cross package boundaries (a transcript produced by a
// recognizer is consumed by a pronunciation rater and the scorer, a message
// list is built by the generator and consumed by every LLM backend).
package types

import "time"

// Transcript is the result of recognising one recorded response.
type Transcript struct {
	// Text is the recognised speech content.
	Text string

	// Language is the BCP-47 language the recogniser was asked for (or
	// detected, when the provider reports it).
	Language string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available.
	// Nil for providers that don't support word-level output.
	Words []WordDetail

	// Duration is the length of the audio that produced this transcript.
	Duration time.Duration
}

// WordDetail holds per-word metadata from recognisers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Message roles understood by every LLM backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsJSON indicates the model reliably follows "answer with JSON only"
	// instructions.
	SupportsJSON bool
}

// VoiceProfile describes the synthesis voice used to read a sentence aloud.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Language is the BCP-47 language of the text being spoken.
	Language string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64

	// PitchFactor adjusts pitch (0.5–2.0, 1.0 = default). Providers that
	// cannot shift pitch ignore it.
	PitchFactor float64
}

// PronunciationScores is the metric bundle produced by a pronunciation rater.
// Every field is in the range 0–100.
type PronunciationScores struct {
	Accuracy     int `json:"accuracy" yaml:"accuracy"`
	Fluency      int `json:"fluency" yaml:"fluency"`
	Completeness int `json:"completeness" yaml:"completeness"`
	Prosody      int `json:"prosody" yaml:"prosody"`
}

// Mean returns the unweighted mean of the four metrics.
func (p PronunciationScores) Mean() float64 {
	return float64(p.Accuracy+p.Fluency+p.Completeness+p.Prosody) / 4
}

// Clamp returns a copy with every metric limited to 0–100.
func (p PronunciationScores) Clamp() PronunciationScores {
	return PronunciationScores{
		Accuracy:     clamp100(p.Accuracy),
		Fluency:      clamp100(p.Fluency),
		Completeness: clamp100(p.Completeness),
		Prosody:      clamp100(p.Prosody),
	}
}

func clamp100(v int) int {
	return min(max(v, 0), 100)
}
