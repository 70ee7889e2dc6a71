package generator

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/hearcoach/internal/corpus"
	"github.com/MrWong99/hearcoach/internal/practice"
)

// fallbackItems is used when a language has no corpus items at all.
var fallbackItems = map[practice.Language][]string{
	practice.Chinese: {"你好", "谢谢", "早上好", "我喜欢喝茶。", "今天天气很好。"},
	practice.English: {"hello", "thank you", "good morning", "I like to drink tea.", "The weather is nice today."},
}

// Offline generates sentences from local corpora. It is safe for concurrent
// use and never returns an error.
type Offline struct {
	seed      uint32
	target    int
	chainWalk bool
	corpora   map[practice.Language]*corpus.Corpus

	mu     sync.Mutex
	rng    *corpus.Random
	models map[practice.Language]*model
}

var _ Generator = (*Offline)(nil)

// OfflineOption configures an [Offline] generator.
type OfflineOption func(*Offline)

// WithSeed sets the seed of the selection stream and of the built-in corpus
// augmentation. 0 selects [corpus.DefaultSeed].
func WithSeed(seed uint32) OfflineOption {
	return func(o *Offline) { o.seed = seed }
}

// WithCorpus supplies the corpus of one language instead of building it from
// the embedded pack.
func WithCorpus(c *corpus.Corpus) OfflineOption {
	return func(o *Offline) {
		if c != nil {
			o.corpora[c.Language] = c
		}
	}
}

// WithTargetPerTier sets how many items per tier the built-in corpora are
// augmented to. Defaults to [corpus.DefaultTargetPerTier].
func WithTargetPerTier(n int) OfflineOption {
	return func(o *Offline) { o.target = n }
}

// WithChainWalk enables token-level Markov generation for requests whose
// desired length has more than one token. Verbatim corpus selection remains
// the fallback when a walk cannot reach the requested length.
func WithChainWalk(enabled bool) OfflineOption {
	return func(o *Offline) { o.chainWalk = enabled }
}

// NewOffline builds the corpora and Markov tables of every supported
// language. Languages without a supplied corpus use the embedded pack; a pack
// that fails to load leaves the language on the hardcoded fallback list.
func NewOffline(opts ...OfflineOption) *Offline {
	o := &Offline{
		target:  corpus.DefaultTargetPerTier,
		corpora: make(map[practice.Language]*corpus.Corpus),
		models:  make(map[practice.Language]*model),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.rng = corpus.NewRandom(o.seed)

	for _, lang := range practice.Languages {
		c, ok := o.corpora[lang]
		if !ok {
			built, err := corpus.Builtin(lang, o.target, o.seed)
			if err != nil {
				slog.Warn("offline generator: built-in corpus unavailable",
					"language", lang, "err", err)
				built = &corpus.Corpus{Language: lang}
			}
			c = built
		}
		o.models[lang] = buildModel(lang, c)
	}
	return o
}

// Generate returns one sentence for req. Unknown languages are served from
// the English corpus.
func (o *Offline) Generate(_ context.Context, req practice.GenerationRequest) (practice.Sentence, error) {
	lang := req.Language
	m, ok := o.models[lang]
	if !ok {
		lang = practice.English
		m = o.models[lang]
	}

	o.mu.Lock()
	text := ""
	if o.chainWalk && req.DesiredLength != practice.LengthWord && req.DesiredLength != "" {
		text = m.walk(o.rng, req.DesiredLength)
	}
	if text == "" {
		text = corpus.Choice(o.rng, m.pool(req.Tier))
	}
	o.mu.Unlock()

	return practice.NewSentence(text, lang, req.Tier, req.VocabBucket, req.Topic), nil
}

// weighted is a token with its observed frequency.
type weighted struct {
	token string
	count int
}

// model is the per-language corpus plus its derived Markov tables.
type model struct {
	lang        practice.Language
	corpus      *corpus.Corpus
	starters    []weighted
	transitions map[string][]weighted
}

func buildModel(lang practice.Language, c *corpus.Corpus) *model {
	starters := make(map[string]int)
	pairs := make(map[string]map[string]int)

	add := func(items []string) {
		for _, item := range items {
			tokens := tokenize(lang, item)
			if len(tokens) == 0 {
				continue
			}
			starters[tokens[0]]++
			for i := 0; i+1 < len(tokens); i++ {
				next, ok := pairs[tokens[i]]
				if !ok {
					next = make(map[string]int)
					pairs[tokens[i]] = next
				}
				next[tokens[i+1]]++
			}
		}
	}
	for _, tier := range practice.Tiers {
		add(c.Tier(tier))
	}
	add(c.Common)

	m := &model{
		lang:        lang,
		corpus:      c,
		starters:    sortedWeights(starters),
		transitions: make(map[string][]weighted, len(pairs)),
	}
	for tok, next := range pairs {
		m.transitions[tok] = sortedWeights(next)
	}
	return m
}

// sortedWeights flattens a frequency map in token order so that sampling
// with a seeded stream is reproducible.
func sortedWeights(freq map[string]int) []weighted {
	out := make([]weighted, 0, len(freq))
	for tok, n := range freq {
		out = append(out, weighted{token: tok, count: n})
	}
	slices.SortFunc(out, func(a, b weighted) int { return strings.Compare(a.token, b.token) })
	return out
}

func pick(rng *corpus.Random, ws []weighted) string {
	total := 0
	for _, w := range ws {
		total += w.count
	}
	if total == 0 {
		return ""
	}
	n := rng.Intn(total)
	for _, w := range ws {
		if n < w.count {
			return w.token
		}
		n -= w.count
	}
	return ws[len(ws)-1].token
}

// pool returns the items to sample for tier: the tier itself, then the
// common bucket, then the hardcoded list.
func (m *model) pool(tier practice.Tier) []string {
	if items := m.corpus.Tier(tier); len(items) > 0 {
		return items
	}
	if len(m.corpus.Common) > 0 {
		return m.corpus.Common
	}
	return fallbackItems[m.lang]
}

// walk samples a starter and follows weighted transitions until the token
// band of length is filled or the chain dead-ends. It returns "" when the
// walk ends short of the band.
func (m *model) walk(rng *corpus.Random, length practice.Length) string {
	lo, hi := length.TokenBand()
	tok := pick(rng, m.starters)
	if tok == "" {
		return ""
	}
	tokens := []string{tok}
	for len(tokens) < hi {
		next := pick(rng, m.transitions[tok])
		if next == "" {
			break
		}
		tokens = append(tokens, next)
		tok = next
	}
	if len(tokens) < lo {
		return ""
	}
	return format(m.lang, tokens)
}

// tokenize splits an item into Markov tokens: characters for logographic
// languages, whitespace-separated words otherwise. Punctuation is dropped
// and case folded.
func tokenize(lang practice.Language, s string) []string {
	norm := corpus.Normalize(lang, s)
	if !lang.Logographic() {
		return strings.Fields(norm)
	}
	tokens := make([]string, 0, utf8.RuneCountInString(norm))
	for _, r := range norm {
		if unicode.IsSpace(r) {
			continue
		}
		tokens = append(tokens, string(r))
	}
	return tokens
}

// format joins walked tokens the way corpus items are written.
func format(lang practice.Language, tokens []string) string {
	if lang.Logographic() {
		return strings.Join(tokens, "")
	}
	s := strings.Join(tokens, " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:] + "."
}
