// Package phonetic implements [pronunciation.Rater] locally, without a
// network service, from the recogniser transcript and the recorded clip.
//
// The four scores are estimated as follows:
//
//   - Accuracy: every reference token is matched against its best transcript
//     token and the similarities are averaged. Alphabetic words are compared
//     by Jaro-Winkler on both spelling and Double Metaphone codes, so that a
//     homophone the recogniser wrote differently ("there" for "their") still
//     scores high. Han characters are compared by identity.
//   - Completeness: the share of reference tokens whose best match reaches
//     the match threshold (default 0.85).
//   - Fluency: speaking rate over the voiced part of the clip, measured
//     against a comfortable band per script, combined with the share of
//     silent frames inside that voiced region.
//   - Prosody: the variation of frame loudness across the voiced region. A
//     flat, monotone delivery scores low.
//
// These are heuristics, not acoustic models; a cloud assessment service can
// replace this rater behind the same interface.
package phonetic

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/hearcoach/pkg/audio"
	"github.com/MrWong99/hearcoach/pkg/provider/pronunciation"
	"github.com/MrWong99/hearcoach/pkg/types"
)

const (
	defaultMatchThreshold = 0.85

	// frameWindow is the analysis window for loudness-based scores.
	frameWindow = 20 * time.Millisecond

	// silenceLevel is the normalised RMS below which a frame counts as silent.
	silenceLevel = 0.02

	// freePauseRatio is the share of silent frames inside the voiced region
	// that costs nothing; natural speech has short gaps between words.
	freePauseRatio = 0.25
)

// band is a comfortable speaking rate in tokens per second.
type band struct{ lo, hi float64 }

var (
	wordBand = band{1.5, 4.0} // English words per second
	hanBand  = band{2.0, 6.0} // Chinese characters per second
)

var _ pronunciation.Rater = (*Rater)(nil)

// Option is a functional option for configuring a [Rater].
type Option func(*Rater)

// WithMatchThreshold sets the token similarity at which a reference token
// counts as produced. Default: 0.85.
func WithMatchThreshold(threshold float64) Option {
	return func(r *Rater) { r.matchThreshold = threshold }
}

// Rater is a local pronunciation rater. It is read-only after construction
// and safe for concurrent use.
type Rater struct {
	matchThreshold float64
}

// New returns a Rater configured with the supplied options.
func New(opts ...Option) *Rater {
	r := &Rater{matchThreshold: defaultMatchThreshold}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rate implements [pronunciation.Rater].
func (r *Rater) Rate(ctx context.Context, clip audio.Clip, reference, transcript string) (types.PronunciationScores, error) {
	if err := ctx.Err(); err != nil {
		return types.PronunciationScores{}, err
	}

	ref := tokenize(reference)
	hyp := tokenize(transcript)

	var scores types.PronunciationScores
	if len(ref) > 0 && len(hyp) > 0 {
		var sum float64
		matched := 0
		for _, rt := range ref {
			best := 0.0
			for _, ht := range hyp {
				best = max(best, tokenSimilarity(rt, ht))
			}
			sum += best
			if best >= r.matchThreshold {
				matched++
			}
		}
		scores.Accuracy = percent(sum / float64(len(ref)))
		scores.Completeness = percent(float64(matched) / float64(len(ref)))
	}

	levels := clip.FrameLevels(frameWindow)
	voiced := voicedRegion(levels)
	if len(voiced) > 0 && len(hyp) > 0 {
		seconds := float64(len(voiced)) * frameWindow.Seconds()
		rb := wordBand
		if isHan(hyp[0]) {
			rb = hanBand
		}
		rate := rateScore(float64(len(hyp))/seconds, rb)
		pause := pauseScore(voiced)
		scores.Fluency = percent(0.6*rate + 0.4*pause)
		scores.Prosody = percent(variationScore(voiced))
	}

	return scores.Clamp(), nil
}

// tokenize splits s into comparison tokens: lowercase words for alphabetic
// text and single characters for Han text. Punctuation is dropped.
func tokenize(s string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func isHan(token string) bool {
	for _, r := range token {
		return unicode.Is(unicode.Han, r)
	}
	return false
}

// tokenSimilarity scores how close a produced token is to a reference token,
// in [0, 1].
func tokenSimilarity(ref, hyp string) float64 {
	if ref == hyp {
		return 1
	}
	if isHan(ref) || isHan(hyp) {
		return 0
	}
	spelling := matchr.JaroWinkler(ref, hyp, false)
	sound := codeSimilarity(ref, hyp)
	return max(spelling, (spelling+sound)/2)
}

// codeSimilarity returns the best Jaro-Winkler score between any Double
// Metaphone code of a and any code of b.
func codeSimilarity(a, b string) float64 {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	best := 0.0
	for _, x := range []string{ap, as} {
		for _, y := range []string{bp, bs} {
			if x == "" || y == "" {
				continue
			}
			if x == y {
				return 1
			}
			best = max(best, matchr.JaroWinkler(x, y, false))
		}
	}
	return best
}

// voicedRegion trims leading and trailing silent frames.
func voicedRegion(levels []float64) []float64 {
	first, last := -1, -1
	for i, l := range levels {
		if l >= silenceLevel {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}
	return levels[first : last+1]
}

// rateScore is 1 inside the band and decays linearly with the relative
// distance outside it, reaching 0 at half or double the band edge.
func rateScore(rate float64, b band) float64 {
	switch {
	case rate < b.lo:
		return math.Max(0, 1-(b.lo-rate)/(b.lo/2))
	case rate > b.hi:
		return math.Max(0, 1-(rate-b.hi)/b.hi)
	default:
		return 1
	}
}

// pauseScore penalises silence inside the voiced region beyond the free
// share.
func pauseScore(voiced []float64) float64 {
	silent := 0
	for _, l := range voiced {
		if l < silenceLevel {
			silent++
		}
	}
	ratio := float64(silent) / float64(len(voiced))
	if ratio <= freePauseRatio {
		return 1
	}
	return math.Max(0, 1-(ratio-freePauseRatio)/(1-freePauseRatio))
}

// variationScore maps the coefficient of variation of voiced frame loudness
// to [0, 1]: 0 for a perfectly flat signal, 1 from 0.3 upwards.
func variationScore(voiced []float64) float64 {
	var sum float64
	n := 0
	for _, l := range voiced {
		if l >= silenceLevel {
			sum += l
			n++
		}
	}
	if n < 2 {
		return 0
	}
	mean := sum / float64(n)
	var sq float64
	for _, l := range voiced {
		if l >= silenceLevel {
			d := l - mean
			sq += d * d
		}
	}
	cv := math.Sqrt(sq/float64(n)) / mean
	return math.Min(1, cv/0.3)
}

func percent(f float64) int {
	return int(math.Round(f * 100))
}
