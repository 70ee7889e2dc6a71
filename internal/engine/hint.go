package engine

import (
	"strings"
	"unicode"

	"github.com/MrWong99/hearcoach/internal/practice"
)

const (
	logographMask = '＿'
	letterMask    = '_'
)

// MaskHint shows roughly the first third of text and masks the rest.
// Logographic text is split into characters, other text into words.
// Punctuation and spacing stay visible.
func MaskHint(lang practice.Language, text string) string {
	if lang.Logographic() {
		return maskLogographic(text)
	}
	return maskWords(text)
}

func maskLogographic(text string) string {
	runes := []rune(text)
	total := 0
	for _, r := range runes {
		if maskable(r) {
			total++
		}
	}
	show := visibleCount(total)

	var b strings.Builder
	seen := 0
	for _, r := range runes {
		if !maskable(r) {
			b.WriteRune(r)
			continue
		}
		seen++
		if seen <= show {
			b.WriteRune(r)
		} else {
			b.WriteRune(logographMask)
		}
	}
	return b.String()
}

func maskWords(text string) string {
	words := strings.Fields(text)
	show := visibleCount(len(words))
	for i := show; i < len(words); i++ {
		words[i] = strings.Map(func(r rune) rune {
			if maskable(r) {
				return letterMask
			}
			return r
		}, words[i])
	}
	return strings.Join(words, " ")
}

func maskable(r rune) bool {
	return !unicode.IsPunct(r) && !unicode.IsSpace(r) && !unicode.IsSymbol(r)
}

// visibleCount is ceil(n/3), at least one token when there is any.
func visibleCount(n int) int {
	if n == 0 {
		return 0
	}
	return (n + 2) / 3
}
