// SPDX-License-Identifier: MIT
package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Acme Inc", "Acme Inc"},
		{"trims whitespace", "  株式会社サンプル \n", "株式会社サンプル"},
		{"strips zero width", "\u200b\ufeffAcme\u200d", "Acme"},
		{"fullwidth ascii folded", "ＡＢＣ商事", "ABC商事"},
		{"halfwidth kana folded", "ｻﾝﾌﾟﾙ", "サンプル"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.in); got != tt.want {
				t.Errorf("Name(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "hello", 10, "hello"},
		{"exact max", "hello", 5, "hello"},
		{"cut ascii", "hello world", 5, "hello…"},
		{"cut japanese on rune boundary", "企業調査アナリスト", 2, "企業…"},
		{"zero max", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestTruncateLongSummary(t *testing.T) {
	long := strings.Repeat("あ", 2000)
	got := Truncate(long, 1800)
	if n := utf8.RuneCountInString(got); n != 1801 { // 1800 + ellipsis
		t.Errorf("rune count = %d, want 1801", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("expected ellipsis suffix")
	}
}
