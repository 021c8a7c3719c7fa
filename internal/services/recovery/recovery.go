package recovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// disableDuration is how long a repeatedly failing category stays disabled.
const disableDuration = 24 * time.Hour

// patternKeywords maps failure patterns to the substrings that indicate them.
// Matching is case-insensitive, first pattern wins.
var patternKeywords = []struct {
	pattern  models.FailurePattern
	keywords []string
}{
	{models.PatternRateLimit, []string{"rate limit", "429", "too many requests", "quota"}},
	{models.PatternAuthentication, []string{"unauthorized", "forbidden", "401", "403", "authentication", "api key"}},
	{models.PatternServiceUnavailable, []string{"service unavailable", "503", "502", "500", "bad gateway", "unavailable"}},
	{models.PatternNetwork, []string{"connection", "timeout", "timed out", "network", "dns", "refused", "reset"}},
	{models.PatternParsing, []string{"parse", "parsing", "invalid html", "no title", "decode", "unmarshal"}},
}

// ClassifyError maps a raw error message to a failure pattern.
func ClassifyError(message string) models.FailurePattern {
	lower := strings.ToLower(message)
	for _, entry := range patternKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.pattern
			}
		}
	}
	return models.PatternUnknown
}

// Engine analyzes recent job failures per category and decides how to
// recover: retry now, retry later, disable the category, or escalate.
type Engine struct {
	jobs       interfaces.JobStorage
	categories interfaces.CategoryStorage
	alerts     interfaces.AlertSink
	config     common.RecoveryConfig
	logger     arbor.ILogger
}

func NewEngine(jobs interfaces.JobStorage, categories interfaces.CategoryStorage, alerts interfaces.AlertSink, config common.RecoveryConfig, logger arbor.ILogger) *Engine {
	return &Engine{
		jobs:       jobs,
		categories: categories,
		alerts:     alerts,
		config:     config,
		logger:     logger,
	}
}

// Analyze aggregates failed jobs inside the window per category.
func (e *Engine) Analyze(ctx context.Context) ([]*models.JobFailureAnalysis, error) {
	since := time.Now().Add(-e.config.Window)
	failed, err := e.jobs.GetFailedJobsSince(ctx, since)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*models.JobFailureAnalysis)
	for _, job := range failed {
		analysis, ok := byCategory[job.CategoryID]
		if !ok {
			analysis = &models.JobFailureAnalysis{
				CategoryID:    job.CategoryID,
				PatternCounts: make(map[models.FailurePattern]int),
			}
			byCategory[job.CategoryID] = analysis
		}

		pattern := ClassifyError(job.ErrorMessage)
		analysis.FailureCount++
		analysis.PatternCounts[pattern]++
		analysis.JobIDs = append(analysis.JobIDs, job.ID)
		if job.UpdatedAt.After(analysis.LastFailure) {
			analysis.LastFailure = job.UpdatedAt
		}
	}

	out := make([]*models.JobFailureAnalysis, 0, len(byCategory))
	for _, analysis := range byCategory {
		analysis.DominantPattern = dominantPattern(analysis.PatternCounts)
		out = append(out, analysis)
	}
	return out, nil
}

// Plan chooses the recovery action for one category's failure analysis.
func (e *Engine) Plan(analysis *models.JobFailureAnalysis) *models.RecoveryPlan {
	pattern := analysis.DominantPattern
	count := analysis.FailureCount

	plan := &models.RecoveryPlan{CategoryID: analysis.CategoryID}

	switch {
	case count >= e.config.MaxRetries && (pattern == models.PatternAuthentication || pattern == models.PatternServiceUnavailable):
		plan.Action = models.ActionEscalate
		plan.Reason = fmt.Sprintf("%d failures with %s pattern, needs operator attention", count, pattern)

	case count >= e.config.MaxRetries:
		plan.Action = models.ActionDisableCategory
		plan.Reason = fmt.Sprintf("%d failures exceeded retry budget", count)

	case pattern == models.PatternRateLimit || pattern == models.PatternNetwork || pattern == models.PatternServiceUnavailable:
		plan.Action = models.ActionRetryDelayed
		plan.Delay = retryDelay(pattern, count)
		plan.Reason = fmt.Sprintf("transient %s failures, retrying after %s", pattern, plan.Delay)

	case (pattern == models.PatternAuthentication || pattern == models.PatternParsing) && count >= e.config.EscalationThreshold:
		plan.Action = models.ActionEscalate
		plan.Reason = fmt.Sprintf("persistent %s failures", pattern)

	case pattern == models.PatternUnknown && count >= e.config.EscalationThreshold:
		plan.Action = models.ActionEscalate
		plan.Reason = fmt.Sprintf("%d unclassified failures", count)

	case count <= 2:
		plan.Action = models.ActionRetryImmediately
		plan.Reason = "few recent failures, retrying now"

	default:
		plan.Action = models.ActionRetryDelayed
		plan.Delay = retryDelay(pattern, count)
		plan.Reason = fmt.Sprintf("retrying %s failures after %s", pattern, plan.Delay)
	}

	return plan
}

// Execute applies a recovery plan.
func (e *Engine) Execute(ctx context.Context, analysis *models.JobFailureAnalysis, plan *models.RecoveryPlan) error {
	e.logger.Info().
		Str("category_id", plan.CategoryID).
		Str("action", string(plan.Action)).
		Str("reason", plan.Reason).
		Int("failures", analysis.FailureCount).
		Msg("Executing recovery plan")

	switch plan.Action {
	case models.ActionEscalate:
		e.dispatchAlert(models.SeverityCritical, plan, analysis)
		for _, jobID := range analysis.JobIDs {
			if err := e.jobs.MarkForManualReview(ctx, jobID, plan.Reason); err != nil {
				e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Manual review mark failed")
			}
		}

	case models.ActionDisableCategory:
		until := time.Now().Add(disableDuration)
		if err := e.categories.DisableTemporarily(ctx, plan.CategoryID, plan.Reason, until); err != nil {
			return err
		}
		e.dispatchAlert(models.SeverityHigh, plan, analysis)

	case models.ActionRetryDelayed:
		retryAt := time.Now().Add(plan.Delay)
		for _, jobID := range analysis.JobIDs {
			job, err := e.jobs.Get(ctx, jobID)
			if err != nil {
				continue
			}
			job.Status = models.JobStatusPending
			job.RetryAt = &retryAt
			job.CompletedAt = nil
			if err := e.jobs.Update(ctx, job); err != nil {
				e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Retry reschedule failed")
			}
		}

	case models.ActionRetryImmediately:
		for _, jobID := range analysis.JobIDs {
			job, err := e.jobs.Get(ctx, jobID)
			if err != nil {
				continue
			}
			job.Status = models.JobStatusPending
			job.RetryAt = nil
			job.CompletedAt = nil
			if err := e.jobs.Update(ctx, job); err != nil {
				e.logger.Warn().Err(err).Str("job_id", jobID).Msg("Immediate retry failed")
			}
		}
	}

	return nil
}

// Run performs one full analyze-plan-execute cycle.
func (e *Engine) Run(ctx context.Context) error {
	analyses, err := e.Analyze(ctx)
	if err != nil {
		return err
	}

	for _, analysis := range analyses {
		plan := e.Plan(analysis)
		if err := e.Execute(ctx, analysis, plan); err != nil {
			e.logger.Warn().
				Err(err).
				Str("category_id", analysis.CategoryID).
				Msg("Recovery execution failed")
		}
	}
	return nil
}

func (e *Engine) dispatchAlert(severity models.AlertSeverity, plan *models.RecoveryPlan, analysis *models.JobFailureAnalysis) {
	if e.alerts == nil {
		return
	}
	e.alerts.Dispatch(models.Alert{
		Type:        models.AlertTaskFailure,
		Severity:    severity,
		Message:     plan.Reason,
		ServiceName: "recovery_engine",
		Details: map[string]interface{}{
			"category_id":   plan.CategoryID,
			"action":        string(plan.Action),
			"failure_count": analysis.FailureCount,
			"pattern":       string(analysis.DominantPattern),
		},
		Timestamp: time.Now(),
	})
}

// retryDelay computes the backoff for delayed retries: rate limits wait much
// longer than other transient failures.
func retryDelay(pattern models.FailurePattern, failures int) time.Duration {
	if pattern == models.PatternRateLimit {
		return time.Duration(1800+300*failures) * time.Second
	}
	return time.Duration(300+60*failures) * time.Second
}

func dominantPattern(counts map[models.FailurePattern]int) models.FailurePattern {
	best := models.PatternUnknown
	bestCount := 0
	for pattern, count := range counts {
		if count > bestCount {
			best = pattern
			bestCount = count
		}
	}
	return best
}
