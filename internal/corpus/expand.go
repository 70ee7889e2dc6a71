package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hearcoach/internal/practice"
	"github.com/MrWong99/hearcoach/pkg/provider/llm"
	"github.com/MrWong99/hearcoach/pkg/types"
)

// Expander defaults.
const (
	DefaultPerCall     = 100
	DefaultPace        = 600 * time.Millisecond
	DefaultTemperature = 0.7

	// maxForbidden caps the "do not repeat" list sent with each request.
	maxForbidden = 500
)

// Expander pads corpus tiers to a target size by asking an LLM for new items
// in batches. Replies are sanitised and deduplicated locally; the model is
// never trusted to honour the forbidden list.
type Expander struct {
	llm         llm.Provider
	perCall     int
	pace        time.Duration
	temperature float64
}

// ExpanderOption configures an [Expander].
type ExpanderOption func(*Expander)

// WithPerCall sets the initial number of items requested per call.
func WithPerCall(n int) ExpanderOption {
	return func(e *Expander) { e.perCall = n }
}

// WithPace sets the pause between consecutive calls.
func WithPace(d time.Duration) ExpanderOption {
	return func(e *Expander) { e.pace = d }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ExpanderOption {
	return func(e *Expander) { e.temperature = t }
}

// NewExpander returns an Expander backed by p.
func NewExpander(p llm.Provider, opts ...ExpanderOption) *Expander {
	e := &Expander{
		llm:         p,
		perCall:     DefaultPerCall,
		pace:        DefaultPace,
		temperature: DefaultTemperature,
	}
	for _, o := range opts {
		o(e)
	}
	e.perCall = max(e.perCall, 1)
	return e
}

// ExpandTier returns existing padded up to target items. A reply that adds no
// new item, whether empty or all duplicates, halves the batch size; such a
// reply at batch size one ends the tier early. On a provider error the items
// gathered so far are returned together with the error.
func (e *Expander) ExpandTier(ctx context.Context, lang practice.Language, tier practice.Tier, existing []string, target int) ([]string, error) {
	items := append([]string(nil), existing...)
	seen := make(map[string]struct{}, max(target, len(items)))
	for _, it := range items {
		seen[Normalize(lang, it)] = struct{}{}
	}

	perCall := e.perCall
	for len(items) < target {
		batch := min(perCall, target-len(items))
		forbidden := items[max(0, len(items)-maxForbidden):]

		resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt(lang),
			Messages:     []types.Message{{Role: types.RoleUser, Content: userPrompt(lang, tier, batch, forbidden)}},
			Temperature:  e.temperature,
		})
		if err != nil {
			return truncate(items, target), fmt.Errorf("corpus: expand %s/%s: %w", lang, tier, err)
		}

		fresh := parseBatch(resp.Content, tier)
		added := 0
		for _, s := range fresh {
			if tier == practice.Easy {
				s = trimTerminal(s)
			}
			key := Normalize(lang, s)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, s)
			added++
		}
		slog.Debug("corpus: expansion batch", "language", lang, "tier", tier, "requested", batch, "returned", len(fresh), "added", added, "total", len(items))

		if err := sleepCtx(ctx, e.pace); err != nil {
			return truncate(items, target), err
		}

		if added == 0 {
			if batch == 1 {
				slog.Warn("corpus: model returned no new items, giving up on tier", "language", lang, "tier", tier, "total", len(items))
				break
			}
			perCall = max(1, batch/2)
		}
	}
	return truncate(items, target), nil
}

// Expand pads every tier of c (sequentially) to target items.
func (e *Expander) Expand(ctx context.Context, c *Corpus, target int) error {
	for _, tier := range practice.Tiers {
		current := c.Tier(tier)
		if len(current) >= target {
			continue
		}
		items, err := e.ExpandTier(ctx, c.Language, tier, current, target)
		c.SetTier(tier, items)
		if err != nil {
			return err
		}
		slog.Info("corpus: tier expanded", "language", c.Language, "tier", tier, "items", len(items))
	}
	return nil
}

// ExpandAll expands several corpora concurrently, one goroutine per corpus.
// Corpora are updated in place, so partial progress survives an error.
func (e *Expander) ExpandAll(ctx context.Context, corpora []*Corpus, target int) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range corpora {
		g.Go(func() error { return e.Expand(ctx, c, target) })
	}
	return g.Wait()
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseBatch extracts the tier's array from a reply. Malformed replies yield
// an empty batch.
func parseBatch(content string, tier practice.Tier) []string {
	raw, ok := llm.ExtractJSON(content)
	if !ok {
		return nil
	}
	var out map[string][]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	items := out[string(tier)]
	for i, s := range items {
		items[i] = strings.TrimSpace(s)
	}
	return items
}

const systemPromptZH = `你是一个数据整理助手。请根据要求返回 JSON。
要求：
- 严格输出 JSON，键名固定：easy, medium, hard。
- 不要输出任何解释或额外文本。
- 语言：中文（简体）。
- easy: 日常词语（单词或极短词组），不含标点。
- medium: 简单日常句子，口语自然，使用中文标点（句末'。'），每句 8-18 字为宜。
- hard: 优美华丽的句子，意象自然流畅，句末'。'，避免生僻夸张。每句 15-30 字为宜。`

const systemPromptEN = `You are a data curation assistant. Return JSON only.
Requirements:
- Strict JSON object with keys: easy, medium, hard.
- No explanations or extra text.
- easy: daily words/short phrases (no punctuation).
- medium: simple daily sentences (end with '.'), 5-12 words.
- hard: elegant, lyrical but grammatical sentences (end with '.'), 10-22 words.`

var guidance = map[practice.Language]map[practice.Tier]string{
	practice.Chinese: {
		practice.Easy:   "日常词语；主题不限但需生活常见；不要包含标点；避免专有名词。",
		practice.Medium: "简单日常句子；情境真实；使用中文标点；句末用“。”；不要成段文字。",
		practice.Hard:   "优美华丽的句子；自然意象；避免堆砌辞藻与生僻；句末用“。”。",
	},
	practice.English: {
		practice.Easy:   "Daily words/short phrases; no punctuation; avoid proper nouns.",
		practice.Medium: "Simple daily sentences; natural tone; end with a period.",
		practice.Hard:   "Elegant/lyrical sentences; natural imagery; not purple prose; end with a period.",
	},
}

func systemPrompt(lang practice.Language) string {
	if lang == practice.Chinese {
		return systemPromptZH
	}
	return systemPromptEN
}

func userPrompt(lang practice.Language, tier practice.Tier, count int, forbidden []string) string {
	blob, _ := json.Marshal(forbidden)
	name := "English"
	if lang == practice.Chinese {
		name = "Chinese (Simplified)"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Language: %s\n", name)
	fmt.Fprintf(&b, "Level: %s\n", tier)
	fmt.Fprintf(&b, "Count: %d\n", count)
	fmt.Fprintf(&b, "Style guidance: %s\n", guidance[lang][tier])
	fmt.Fprintf(&b, "Forbidden items (no overlap): %s\n", blob)
	b.WriteString("Return STRICT JSON with exactly one array at the requested level, other levels empty arrays.")
	return b.String()
}
