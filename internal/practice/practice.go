// Package practice defines the domain model of a listen-and-repeat practice
// session: sentences, generation requests, attempts, sessions and daily usage.
//
// Values in this package are immutable once constructed; the session engine
// creates them and hands copies to stores and callers.
package practice

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Language is a practice language identified by its BCP-47 code.
type Language string

const (
	// Chinese (Simplified). Logographic: no case, no word separators.
	Chinese Language = "zh"

	// English.
	English Language = "en"
)

// Languages lists every supported practice language.
var Languages = []Language{Chinese, English}

// Logographic reports whether text in the language is written without word
// separators and without letter case.
func (l Language) Logographic() bool {
	return l == Chinese
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == Chinese || l == English
}

// ParseLanguage converts a code such as "zh", "zh-CN" or "en-US" into a
// [Language].
func ParseLanguage(s string) (Language, error) {
	code, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	l := Language(code)
	if !l.Valid() {
		return "", fmt.Errorf("practice: unsupported language %q", s)
	}
	return l, nil
}

// Tier is a difficulty bucket controlling corpus selection.
type Tier string

const (
	Easy   Tier = "easy"
	Medium Tier = "medium"
	Hard   Tier = "hard"
)

// Tiers lists every tier from easiest to hardest.
var Tiers = []Tier{Easy, Medium, Hard}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == Easy || t == Medium || t == Hard
}

// ParseTier converts a tier name into a [Tier].
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("practice: unknown tier %q", s)
	}
	return t, nil
}

// Length is the desired size of a generated sentence.
type Length string

const (
	LengthWord   Length = "word"
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// TokenBand returns the inclusive token-count range a sentence of this
// length should fall into.
func (l Length) TokenBand() (lo, hi int) {
	switch l {
	case LengthWord:
		return 1, 1
	case LengthShort:
		return 3, 5
	case LengthMedium:
		return 6, 10
	case LengthLong:
		return 11, 20
	default:
		return 1, 1
	}
}

// ResponseMode is how the user answered.
type ResponseMode string

const (
	ModeVoice ResponseMode = "voice"
	ModeText  ResponseMode = "text"
)

// Sentence is one practice item.
type Sentence struct {
	ID          string   `json:"id" yaml:"id"`
	Text        string   `json:"text" yaml:"text"`
	Language    Language `json:"language" yaml:"language"`
	Tier        Tier     `json:"difficultyTier" yaml:"difficulty_tier"`
	VocabBucket string   `json:"vocabBucket" yaml:"vocab_bucket"`
	Topic       string   `json:"topic,omitempty" yaml:"topic,omitempty"`
}

// NewSentence builds a sentence with a fresh ID.
func NewSentence(text string, lang Language, tier Tier, bucket, topic string) Sentence {
	return Sentence{
		ID:          NewID(),
		Text:        text,
		Language:    lang,
		Tier:        tier,
		VocabBucket: bucket,
		Topic:       topic,
	}
}

// GenerationRequest asks a sentence generator for one sentence.
type GenerationRequest struct {
	Language      Language
	Tier          Tier
	DesiredLength Length
	VocabBucket   string
	Topic         string
}

// NewID returns a random unique identifier.
func NewID() string {
	return uuid.New().String()
}
