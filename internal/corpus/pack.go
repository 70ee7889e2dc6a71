package corpus

import (
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/hearcoach/internal/practice"
)

//go:embed data/*.yaml
var packFS embed.FS

// slotPattern matches template slots such as {subject}.
var slotPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Pack is the hand-written seed material for one language: a small seed
// corpus, word pools and sentence templates.
type Pack struct {
	Language practice.Language `yaml:"language"`
	Seed     Corpus            `yaml:"seed"`
	Common   []string          `yaml:"common"`

	// EasyPools names the pools that easy-tier items are drawn from.
	EasyPools []string `yaml:"easy_pools"`

	// Pools maps a slot name to its fillers.
	Pools map[string][]string `yaml:"pools"`

	// Templates holds the slot templates of the medium and hard tiers.
	Templates map[practice.Tier][]string `yaml:"templates"`
}

// LoadPack returns the embedded seed pack of lang.
func LoadPack(lang practice.Language) (*Pack, error) {
	data, err := packFS.ReadFile("data/" + string(lang) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("corpus: no seed pack for language %q: %w", lang, err)
	}
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("corpus: parse seed pack %q: %w", lang, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every pool referenced by EasyPools or a template slot
// exists and is non-empty.
func (p *Pack) Validate() error {
	var errs []error
	if !p.Language.Valid() {
		errs = append(errs, fmt.Errorf("corpus: pack language %q unsupported", p.Language))
	}
	check := func(where, name string) {
		if len(p.Pools[name]) == 0 {
			errs = append(errs, fmt.Errorf("corpus: %s pack: %s references empty or missing pool %q", p.Language, where, name))
		}
	}
	for _, name := range p.EasyPools {
		check("easy_pools", name)
	}
	for tier, templates := range p.Templates {
		for _, tmpl := range templates {
			for _, m := range slotPattern.FindAllStringSubmatch(tmpl, -1) {
				check(fmt.Sprintf("%s template %q", tier, tmpl), m[1])
			}
		}
	}
	return errors.Join(errs...)
}

// fill substitutes every slot of tmpl with a random pool entry.
func (p *Pack) fill(rng *Random, tmpl string) string {
	return slotPattern.ReplaceAllStringFunc(tmpl, func(slot string) string {
		return Choice(rng, p.Pools[slot[1:len(slot)-1]])
	})
}

// finish applies sentence formatting to a filled template: the first letter
// is capitalised for alphabetic languages and a terminal mark is ensured.
func (p *Pack) finish(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if p.Language.Logographic() {
		if !strings.HasSuffix(s, "。") && !strings.HasSuffix(s, "！") && !strings.HasSuffix(s, "？") {
			s += "。"
		}
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	s = string(unicode.ToUpper(r)) + s[size:]
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s
}
