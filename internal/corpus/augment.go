package corpus

import (
	"github.com/MrWong99/hearcoach/internal/practice"
)

// DefaultTargetPerTier is the number of items the augmentor aims for per tier.
const DefaultTargetPerTier = 1000

// budgetFactor bounds the number of candidate draws per tier as a multiple of
// the target, so that small pools cannot loop forever once exhausted.
var budgetFactor = map[practice.Tier]int{
	practice.Easy:   10,
	practice.Medium: 20,
	practice.Hard:   25,
}

// Augmentor grows a seed list into a large deduplicated list using the word
// pools and templates of a [Pack]. It never touches the network and is
// deterministic for a given seed.
type Augmentor struct {
	pack *Pack
	rng  *Random
}

// NewAugmentor returns an augmentor over pack seeded with seed.
func NewAugmentor(pack *Pack, seed uint32) *Augmentor {
	return &Augmentor{pack: pack, rng: NewRandom(seed)}
}

// Augment returns up to target items for tier: the seed items first (in
// order, deduplicated), then generated candidates. Items are deduplicated on
// their [Normalize] key. Fewer than target items are returned when the draw
// budget runs out first.
func (a *Augmentor) Augment(tier practice.Tier, seed []string, target int) []string {
	if target <= 0 {
		return nil
	}
	lang := a.pack.Language
	out := make([]string, 0, target)
	seen := make(map[string]struct{}, target)

	add := func(item string) {
		if tier == practice.Easy {
			item = trimTerminal(item)
		}
		key := Normalize(lang, item)
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}

	for _, s := range seed {
		if len(out) >= target {
			return out
		}
		add(s)
	}

	draw := a.drawer(tier)
	if draw == nil {
		return out
	}
	budget := budgetFactor[tier] * target
	for i := 0; i < budget && len(out) < target; i++ {
		add(draw())
	}
	return out
}

// drawer returns a candidate generator for tier, or nil when the pack has no
// material for it.
func (a *Augmentor) drawer(tier practice.Tier) func() string {
	if tier == practice.Easy {
		pools := make([][]string, 0, len(a.pack.EasyPools))
		for _, name := range a.pack.EasyPools {
			if items := a.pack.Pools[name]; len(items) > 0 {
				pools = append(pools, items)
			}
		}
		if len(pools) == 0 {
			return nil
		}
		return func() string {
			return Choice(a.rng, Choice(a.rng, pools))
		}
	}

	templates := a.pack.Templates[tier]
	if len(templates) == 0 {
		return nil
	}
	return func() string {
		return a.pack.finish(a.pack.fill(a.rng, Choice(a.rng, templates)))
	}
}

// Build augments every tier of the pack's seed corpus to target items and
// returns the resulting corpus, including the pack's common bucket.
func (a *Augmentor) Build(target int) *Corpus {
	c := &Corpus{
		Language: a.pack.Language,
		Common:   append([]string(nil), a.pack.Common...),
	}
	for _, tier := range practice.Tiers {
		c.SetTier(tier, a.Augment(tier, a.pack.Seed.Tier(tier), target))
	}
	return c
}

// Builtin loads the embedded pack of lang and augments it to target items
// per tier.
func Builtin(lang practice.Language, target int, seed uint32) (*Corpus, error) {
	pack, err := LoadPack(lang)
	if err != nil {
		return nil, err
	}
	return NewAugmentor(pack, seed).Build(target), nil
}
