package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKeywords(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "trims and collapses whitespace",
			input:    []string{"  bitcoin   price  "},
			expected: []string{"bitcoin price"},
		},
		{
			name:     "strips disallowed characters",
			input:    []string{`bit"coin' <script>`},
			expected: []string{"bitcoin script"},
		},
		{
			name:     "dedupes case-insensitively preserving order",
			input:    []string{"Python", "golang", "python", "PYTHON"},
			expected: []string{"Python", "golang"},
		},
		{
			name:     "drops empty results",
			input:    []string{"", "   ", "!!!"},
			expected: []string{},
		},
		{
			name:     "keeps hyphens dots and underscores",
			input:    []string{"covid-19", "web3.0", "foo_bar"},
			expected: []string{"covid-19", "web3.0", "foo_bar"},
		},
		{
			name:     "keeps non-latin letters",
			input:    []string{"điện thoại", "tin tức", "東京"},
			expected: []string{"điện thoại", "tin tức", "東京"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeKeywords(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizeKeywords_LengthCap(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	got := SanitizeKeywords([]string{string(long)})
	assert.Len(t, got, 1)
	assert.Len(t, got[0], maxKeywordLength)

	// Cap counts runes, not bytes, so multibyte keywords truncate cleanly.
	wide := strings.Repeat("đ", 150)
	got = SanitizeKeywords([]string{wide})
	assert.Len(t, got, 1)
	assert.Len(t, []rune(got[0]), maxKeywordLength)
}

func TestBuildAdvanced(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		excludes []string
		expected string
	}{
		{
			name:     "single keyword",
			keywords: []string{"bitcoin"},
			expected: `"bitcoin"`,
		},
		{
			name:     "multiple keywords OR-joined",
			keywords: []string{"bitcoin", "ethereum"},
			expected: `("bitcoin" OR "ethereum")`,
		},
		{
			name:     "excludes appended",
			keywords: []string{"bitcoin"},
			excludes: []string{"scam", "giveaway"},
			expected: `"bitcoin" -"scam" -"giveaway"`,
		},
		{
			name:     "duplicate keywords collapse before building",
			keywords: []string{"Python", "python"},
			expected: `"Python"`,
		},
		{
			name:     "no surviving keywords yields empty query",
			keywords: []string{"", "!!!"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildAdvanced(tt.keywords, tt.excludes)
			assert.Equal(t, tt.expected, got)
		})
	}
}
