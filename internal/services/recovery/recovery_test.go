package recovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/models"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		message  string
		expected models.FailurePattern
	}{
		{"rate limit exceeded, retry after 1m0s", models.PatternRateLimit},
		{"HTTP 429 Too Many Requests", models.PatternRateLimit},
		{"connection refused", models.PatternNetwork},
		{"request timed out after 30s", models.PatternNetwork},
		{"dns lookup failed", models.PatternNetwork},
		{"failed to parse document", models.PatternParsing},
		{"no title found in document", models.PatternParsing},
		{"401 Unauthorized", models.PatternAuthentication},
		{"invalid api key", models.PatternAuthentication},
		{"503 Service Unavailable", models.PatternServiceUnavailable},
		{"upstream returned 502 bad gateway", models.PatternServiceUnavailable},
		{"something inexplicable happened", models.PatternUnknown},
		{"", models.PatternUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyError(tt.message))
		})
	}
}

func testRecoveryConfig() common.RecoveryConfig {
	return common.RecoveryConfig{
		Window:              24 * time.Hour,
		MaxRetries:          5,
		EscalationThreshold: 3,
	}
}

func analysisWith(pattern models.FailurePattern, count int) *models.JobFailureAnalysis {
	return &models.JobFailureAnalysis{
		CategoryID:      "cat_1",
		FailureCount:    count,
		DominantPattern: pattern,
		PatternCounts:   map[models.FailurePattern]int{pattern: count},
	}
}

func TestPlan(t *testing.T) {
	e := NewEngine(nil, nil, nil, testRecoveryConfig(), common.GetLogger())

	tests := []struct {
		name     string
		pattern  models.FailurePattern
		count    int
		expected models.RecoveryAction
	}{
		{"auth at retry budget escalates", models.PatternAuthentication, 5, models.ActionEscalate},
		{"unavailable at retry budget escalates", models.PatternServiceUnavailable, 5, models.ActionEscalate},
		{"other pattern at retry budget disables", models.PatternParsing, 5, models.ActionDisableCategory},
		{"rate limit delays", models.PatternRateLimit, 3, models.ActionRetryDelayed},
		{"network delays", models.PatternNetwork, 4, models.ActionRetryDelayed},
		{"persistent parsing escalates", models.PatternParsing, 3, models.ActionEscalate},
		{"persistent auth escalates", models.PatternAuthentication, 3, models.ActionEscalate},
		{"persistent unknown escalates", models.PatternUnknown, 3, models.ActionEscalate},
		{"few failures retry now", models.PatternParsing, 2, models.ActionRetryImmediately},
		{"few unknown failures retry now", models.PatternUnknown, 1, models.ActionRetryImmediately},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := e.Plan(analysisWith(tt.pattern, tt.count))
			assert.Equal(t, tt.expected, plan.Action)
			assert.NotEmpty(t, plan.Reason)
		})
	}
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Duration(1800+300*3)*time.Second, retryDelay(models.PatternRateLimit, 3))
	assert.Equal(t, time.Duration(300+60*4)*time.Second, retryDelay(models.PatternNetwork, 4))
	assert.Equal(t, time.Duration(300+60*2)*time.Second, retryDelay(models.PatternParsing, 2))
}

func TestDominantPattern(t *testing.T) {
	counts := map[models.FailurePattern]int{
		models.PatternNetwork:   3,
		models.PatternRateLimit: 1,
	}
	assert.Equal(t, models.PatternNetwork, dominantPattern(counts))
	assert.Equal(t, models.PatternUnknown, dominantPattern(nil))
}
