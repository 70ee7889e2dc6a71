// Package corpus builds and stores the sentence corpora used for offline
// generation.
//
// A corpus holds, per language, one list of practice items per difficulty
// tier plus a small "common" fallback bucket. Corpora are produced from an
// embedded seed pack by the [Augmentor] (templates + slot filling, no network
// access) and can be grown further with an LLM by the [Expander]. Corpus
// files are YAML with the keys easy, medium, hard and common; JSON corpus
// files with the same keys load unchanged.
package corpus

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/hearcoach/internal/practice"
)

// Corpus is the item lists of one language.
type Corpus struct {
	Language practice.Language `yaml:"language,omitempty" json:"language,omitempty"`
	Easy     []string          `yaml:"easy" json:"easy"`
	Medium   []string          `yaml:"medium" json:"medium"`
	Hard     []string          `yaml:"hard" json:"hard"`
	Common   []string          `yaml:"common,omitempty" json:"common,omitempty"`
}

// Tier returns the items of tier t.
func (c *Corpus) Tier(t practice.Tier) []string {
	switch t {
	case practice.Easy:
		return c.Easy
	case practice.Medium:
		return c.Medium
	case practice.Hard:
		return c.Hard
	default:
		return nil
	}
}

// SetTier replaces the items of tier t.
func (c *Corpus) SetTier(t practice.Tier, items []string) {
	switch t {
	case practice.Easy:
		c.Easy = items
	case practice.Medium:
		c.Medium = items
	case practice.Hard:
		c.Hard = items
	}
}

// Len returns the total number of tiered items.
func (c *Corpus) Len() int {
	return len(c.Easy) + len(c.Medium) + len(c.Hard)
}

// LoadFile reads a corpus file. When the file does not name its language,
// lang is used.
func LoadFile(path string, lang practice.Language) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corpus: read %s: %w", path, err)
	}
	var c Corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("corpus: parse %s: %w", path, err)
	}
	if c.Language == "" {
		c.Language = lang
	}
	if !c.Language.Valid() {
		return nil, fmt.Errorf("corpus: %s: unsupported language %q", path, c.Language)
	}
	return &c, nil
}

// SaveFile writes c to path as YAML, creating parent directories.
func SaveFile(path string, c *Corpus) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("corpus: create dir: %w", err)
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("corpus: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("corpus: encode: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("corpus: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("corpus: rename %s: %w", tmp, err)
	}
	return nil
}

// FileName returns the conventional corpus file name for lang inside dir.
func FileName(dir string, lang practice.Language) string {
	return filepath.Join(dir, string(lang)+".yaml")
}

// punctuation is the fixed set stripped by [Normalize] in addition to
// Unicode punctuation.
const punctuation = ".,!?;:'\"()[]{}<>…·、，。！？；：“”‘’（）《》【】「」『』～~—"

// Normalize returns the dedup key of an item: punctuation stripped,
// whitespace collapsed to single spaces, and case folded for non-logographic
// languages.
func Normalize(lang practice.Language, s string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || strings.ContainsRune(punctuation, r) {
			return ' '
		}
		return r
	}, s)
	out := strings.Join(strings.Fields(stripped), " ")
	if !lang.Logographic() {
		out = strings.ToLower(out)
	}
	return out
}

// trimTerminal removes trailing sentence punctuation, the way easy-tier items
// are stored.
func trimTerminal(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".。!！?？")
}
