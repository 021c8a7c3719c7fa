package models

import (
	"time"
)

// FailurePattern classifies a failed job's error message.
type FailurePattern string

const (
	PatternRateLimit          FailurePattern = "rate_limit"
	PatternNetwork            FailurePattern = "network"
	PatternParsing            FailurePattern = "parsing"
	PatternAuthentication     FailurePattern = "authentication"
	PatternServiceUnavailable FailurePattern = "service_unavailable"
	PatternUnknown            FailurePattern = "unknown"
)

// RecoveryAction is the decision the recovery engine takes for a category.
type RecoveryAction string

const (
	ActionRetryImmediately RecoveryAction = "retry_immediately"
	ActionRetryDelayed     RecoveryAction = "retry_delayed"
	ActionDisableCategory  RecoveryAction = "disable_category"
	ActionEscalate         RecoveryAction = "escalate"
)

// JobFailureAnalysis aggregates failures for one category inside the analysis
// window.
type JobFailureAnalysis struct {
	CategoryID      string         `json:"category_id"`
	FailureCount    int            `json:"failure_count"`
	DominantPattern FailurePattern `json:"dominant_pattern"`
	PatternCounts   map[FailurePattern]int `json:"pattern_counts"`
	LastFailure     time.Time      `json:"last_failure"`
	JobIDs          []string       `json:"job_ids"`
}

// RecoveryPlan is the chosen action for an analyzed category.
type RecoveryPlan struct {
	CategoryID string         `json:"category_id"`
	Action     RecoveryAction `json:"action"`
	Delay      time.Duration  `json:"delay,omitempty"`
	Reason     string         `json:"reason"`
}
