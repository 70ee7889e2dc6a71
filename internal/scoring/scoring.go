// Package scoring judges a spoken or typed response against the reference
// sentence.
//
// Both strings are cleaned (punctuation stripped, case folded) and compared
// with an edit-distance similarity in [0, 1]: character by character for
// Chinese and single words, word by word for other sentences. The
// similarity is fused with optional pronunciation metrics into a 0–100 item
// score, reduced by a fixed penalty for every repeated attempt.
package scoring

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/hearcoach/pkg/types"
)

// Defaults applied by [New].
const (
	DefaultThreshold         = 0.80
	DefaultAccuracyThreshold = 70
	DefaultAttemptPenalty    = 10.0
)

// punctuation is stripped in addition to every rune Unicode classifies as
// punctuation, so that symbols commonly typed as punctuation (~, `, ^) are
// covered too.
const punctuation = ".,!?;:'\"()[]{}<>-_/\\|@#$%^&*+=~`…·、，。！？；：“”‘’（）《》〈〉【】「」『』～—－"

// Metric selects the similarity measure.
type Metric int

const (
	// EditDistance is 1 - levenshtein(a, b) / max(len(a), len(b)), over
	// runes for logographic text and single words and over words otherwise.
	EditDistance Metric = iota

	// TokenJaccard is |A ∩ B| / |A ∪ B| over whitespace-separated word sets.
	TokenJaccard
)

// Result is the outcome of scoring one response.
type Result struct {
	// Similarity is the text similarity in [0, 1].
	Similarity float64

	// Correct is the pass/fail judgment.
	Correct bool

	// ItemScore is the composite 0–100 score after attempt penalties.
	ItemScore float64
}

// Scorer holds the scoring policy. The zero value is not usable; construct
// with [New].
type Scorer struct {
	threshold         float64
	accuracyThreshold int
	penalty           float64
	metric            Metric
}

// Option configures a [Scorer].
type Option func(*Scorer)

// WithThreshold sets the similarity a response must exceed to be correct.
func WithThreshold(v float64) Option {
	return func(s *Scorer) { s.threshold = v }
}

// WithAccuracyThreshold sets the pronunciation accuracy a voice response must
// exceed to be correct.
func WithAccuracyThreshold(v int) Option {
	return func(s *Scorer) { s.accuracyThreshold = v }
}

// WithAttemptPenalty sets the points subtracted per repeated attempt.
func WithAttemptPenalty(v float64) Option {
	return func(s *Scorer) { s.penalty = v }
}

// WithMetric selects the similarity metric.
func WithMetric(m Metric) Option {
	return func(s *Scorer) { s.metric = m }
}

// New returns a Scorer with the default policy adjusted by opts.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		threshold:         DefaultThreshold,
		accuracyThreshold: DefaultAccuracyThreshold,
		penalty:           DefaultAttemptPenalty,
		metric:            EditDistance,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var defaultScorer = New()

// Score scores with the default policy. See [Scorer.Score].
func Score(reference, transcript string, attempt int, pron *types.PronunciationScores) Result {
	return defaultScorer.Score(reference, transcript, attempt, pron)
}

// Score judges transcript against reference. attempt is the 1-based attempt
// number within the turn. pron is nil for text responses (and for voice
// responses when no pronunciation rater is configured).
//
// A response is correct when similarity is strictly above the threshold and,
// when pron is present, pronunciation accuracy is strictly above the
// accuracy threshold.
//
// The item score starts at similarity*100, is averaged with the mean of the
// four pronunciation metrics when present, and loses the attempt penalty for
// every attempt after the first. It never drops below zero.
func (s *Scorer) Score(reference, transcript string, attempt int, pron *types.PronunciationScores) Result {
	var sim float64
	switch s.metric {
	case TokenJaccard:
		sim = Jaccard(reference, transcript)
	default:
		sim = Similarity(reference, transcript)
	}

	correct := sim > s.threshold
	base := sim * 100
	if pron != nil {
		p := pron.Clamp()
		correct = correct && p.Accuracy > s.accuracyThreshold
		base = (base + p.Mean()) / 2
	}

	score := base - s.penalty*float64(max(attempt, 1)-1)
	return Result{
		Similarity: sim,
		Correct:    correct,
		ItemScore:  max(score, 0),
	}
}

// Clean strips punctuation and whitespace and folds case. Logographic text
// has no case, so folding is a no-op for it.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Similarity is the edit-distance similarity of the cleaned strings:
// 1 for identical non-empty strings, 0 when either side is empty.
//
// Logographic text, and a pair where neither side has more than one word, is
// compared rune by rune. Anything else is compared word by word, so that a
// misheard word costs a whole unit instead of the few letters it differs in.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	if hasLogograph(a) || hasLogograph(b) || max(len(wa), len(wb)) == 1 {
		return unitSimilarity(Clean(a), Clean(b))
	}
	ua, ub := wordRunes(wa, wb)
	return unitSimilarity(ua, ub)
}

// unitSimilarity is the normalised Levenshtein similarity over runes.
func unitSimilarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 1
	}
	d := matchr.Levenshtein(a, b)
	return max(1-float64(d)/float64(max(la, lb)), 0)
}

// words returns the cleaned whitespace-separated words of s.
func words(s string) []string {
	var out []string
	for _, field := range strings.Fields(s) {
		if w := Clean(field); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// wordRunes encodes both word lists as strings with one private-use rune per
// distinct word, so rune edit distance becomes word edit distance.
func wordRunes(a, b []string) (string, string) {
	codes := make(map[string]rune)
	encode := func(ws []string) string {
		rs := make([]rune, len(ws))
		for i, w := range ws {
			c, ok := codes[w]
			if !ok {
				c = 0xF0000 + rune(len(codes))
				codes[w] = c
			}
			rs[i] = c
		}
		return string(rs)
	}
	return encode(a), encode(b)
}

// Jaccard is the token-set similarity of the two strings. Tokens are
// whitespace-separated words with punctuation removed and case folded; a
// logographic string without spaces is split into single characters.
func Jaccard(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, field := range strings.Fields(s) {
		w := Clean(field)
		if w == "" {
			continue
		}
		if hasLogograph(w) {
			for _, r := range w {
				set[string(r)] = struct{}{}
			}
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func hasLogograph(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
