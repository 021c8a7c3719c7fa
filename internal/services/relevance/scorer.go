package relevance

import (
	"strings"
)

// HighConfidenceThreshold marks articles that very likely belong to the
// category.
const HighConfidenceThreshold = 0.7

// DefaultThreshold is the minimum score for a category association.
const DefaultThreshold = 0.3

// Score rates how well an article matches a category's keywords.
//
// Per keyword: +0.7 for a title hit, +0.3 for a content hit, +0.1 per
// occurrence capped at +0.3, with the keyword's total capped at 1.0. The base
// score averages the per-keyword scores with the matched-keyword ratio; each
// exclude keyword present subtracts 0.2. The result is clamped to [0, 1].
func Score(title, content string, keywords, excludes []string) (float64, []string) {
	if len(keywords) == 0 {
		return 0, nil
	}

	lowerTitle := strings.ToLower(title)
	lowerContent := strings.ToLower(content)
	text := lowerTitle + " " + lowerContent

	var total float64
	var matched []string

	for _, kw := range keywords {
		lower := strings.ToLower(strings.TrimSpace(kw))
		if lower == "" {
			continue
		}

		var score float64
		if strings.Contains(lowerTitle, lower) {
			score += 0.7
		}
		if strings.Contains(lowerContent, lower) {
			score += 0.3
		}
		if freq := strings.Count(text, lower); freq > 0 {
			bonus := 0.1 * float64(freq)
			if bonus > 0.3 {
				bonus = 0.3
			}
			score += bonus
		}
		if score > 1.0 {
			score = 1.0
		}

		if score > 0 {
			matched = append(matched, kw)
		}
		total += score
	}

	avg := total / float64(len(keywords))
	ratio := float64(len(matched)) / float64(len(keywords))
	base := (avg + ratio) / 2

	for _, ex := range excludes {
		lower := strings.ToLower(strings.TrimSpace(ex))
		if lower != "" && strings.Contains(text, lower) {
			base -= 0.2
		}
	}

	if base < 0 {
		base = 0
	}
	if base > 1 {
		base = 1
	}
	return base, matched
}

// IsRelevant reports whether a score clears the association threshold.
func IsRelevant(score, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return score >= threshold
}

// IsHighConfidence reports whether a score clears the high-confidence bar.
func IsHighConfidence(score float64) bool {
	return score >= HighConfidenceThreshold
}
