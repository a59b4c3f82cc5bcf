// Package normalize provides text hygiene for values extracted from Notion
// payloads before they reach prompts or are written back to pages.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Name normalizes a company name for use in prompts and history rows:
// - trims Unicode whitespace + invisible edge characters
// - applies NFKC so full-width ASCII and half-width kana compare and render
//   consistently (Notion titles pasted from Japanese sources mix widths)
func Name(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '\u200b' || // zero width space
			r == '\u200c' || // zero width non-joiner
			r == '\u200d' || // zero width joiner
			r == '\ufeff' // BOM
	})
	return norm.NFKC.String(s)
}

// Truncate caps s at max runes, appending a single ellipsis rune when it was
// cut. Byte-slicing would split multi-byte Japanese characters.
func Truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
