package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		content  string
		keywords []string
		excludes []string
		expected float64
		matched  []string
	}{
		{
			name:     "keyword in title and content",
			title:    "Bitcoin hits new high",
			content:  "The bitcoin rally continued today as bitcoin demand surged.",
			keywords: []string{"bitcoin"},
			// title 0.7 + content 0.3 + freq bonus min(0.3, 0.1*3)=0.3 -> capped 1.0
			// base = (1.0 + 1/1) / 2 = 1.0
			expected: 1.0,
			matched:  []string{"bitcoin"},
		},
		{
			name:     "no keywords matched",
			title:    "Weather report",
			content:  "Sunny all week.",
			keywords: []string{"bitcoin"},
			expected: 0,
			matched:  nil,
		},
		{
			name:     "content-only match",
			title:    "Market update",
			content:  "bitcoin moved sideways",
			keywords: []string{"bitcoin"},
			// content 0.3 + freq 0.1 = 0.4; base = (0.4 + 1) / 2 = 0.7
			expected: 0.7,
			matched:  []string{"bitcoin"},
		},
		{
			name:     "exclude subtracts",
			title:    "Bitcoin giveaway inside",
			content:  "bitcoin",
			keywords: []string{"bitcoin"},
			excludes: []string{"giveaway"},
			// title 0.7 + content 0.3 + freq 0.2 -> capped 1.0; base 1.0 - 0.2 = 0.8
			expected: 0.8,
			matched:  []string{"bitcoin"},
		},
		{
			name:     "clamped at zero",
			title:    "scam giveaway fraud",
			content:  "",
			keywords: []string{"bitcoin"},
			excludes: []string{"scam", "giveaway", "fraud"},
			expected: 0,
			matched:  nil,
		},
		{
			name:     "partial keyword coverage",
			title:    "Bitcoin news",
			content:  "",
			keywords: []string{"bitcoin", "ethereum"},
			// bitcoin: 0.7 + 0.1 = 0.8; ethereum: 0
			// base = (0.8/2 + 1/2) / 2 = 0.45
			expected: 0.45,
			matched:  []string{"bitcoin"},
		},
		{
			name:     "matching is case-insensitive",
			title:    "BITCOIN Surges",
			content:  "",
			keywords: []string{"bitcoin"},
			// 0.7 + 0.1 = 0.8; base = (0.8 + 1) / 2 = 0.9
			expected: 0.9,
			matched:  []string{"bitcoin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, matched := Score(tt.title, tt.content, tt.keywords, tt.excludes)
			assert.InDelta(t, tt.expected, score, 0.0001)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestScore_NoKeywords(t *testing.T) {
	score, matched := Score("anything", "anything", nil, nil)
	assert.Zero(t, score)
	assert.Nil(t, matched)
}

func TestThresholds(t *testing.T) {
	assert.True(t, IsRelevant(0.3, 0))
	assert.False(t, IsRelevant(0.29, 0))
	assert.True(t, IsRelevant(0.5, 0.5))
	assert.False(t, IsRelevant(0.49, 0.5))

	assert.True(t, IsHighConfidence(0.7))
	assert.False(t, IsHighConfidence(0.69))
}
