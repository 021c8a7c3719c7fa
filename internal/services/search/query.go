package search

import (
	"strings"
	"unicode"
)

// maxKeywordLength caps a single sanitized keyword, counted in runes.
const maxKeywordLength = 100

// SanitizeKeywords normalizes raw keywords: trims, collapses internal
// whitespace, strips characters outside [alnum, space, '-', '.', '_'],
// enforces the length cap and dedupes case-insensitively preserving order.
func SanitizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))

	for _, kw := range keywords {
		cleaned := sanitizeKeyword(kw)
		if cleaned == "" {
			continue
		}
		lower := strings.ToLower(cleaned)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, cleaned)
	}
	return out
}

func sanitizeKeyword(kw string) string {
	var b strings.Builder
	for _, r := range kw {
		switch {
		// Unicode-aware alnum class so non-Latin keywords survive intact.
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '-' || r == '.' || r == '_':
			b.WriteRune(r)
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(cleaned); len(runes) > maxKeywordLength {
		cleaned = string(runes[:maxKeywordLength])
	}
	return strings.TrimSpace(cleaned)
}

// BuildAdvanced constructs the Google News query string:
// a single keyword becomes "kw"; multiple become ("kw1" OR "kw2" OR ...).
// Sanitized excludes are appended as -"ex" terms. Returns "" when no
// keywords survive sanitization.
func BuildAdvanced(keywords, excludes []string) string {
	kws := SanitizeKeywords(keywords)
	if len(kws) == 0 {
		return ""
	}

	var b strings.Builder
	if len(kws) == 1 {
		b.WriteString(`"` + kws[0] + `"`)
	} else {
		b.WriteString("(")
		for i, kw := range kws {
			if i > 0 {
				b.WriteString(" OR ")
			}
			b.WriteString(`"` + kw + `"`)
		}
		b.WriteString(")")
	}

	for _, ex := range SanitizeKeywords(excludes) {
		b.WriteString(` -"` + ex + `"`)
	}

	return b.String()
}
