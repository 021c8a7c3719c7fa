package jobs

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
	"github.com/ternarybob/herald/internal/services/engine"
)

// rateLimitRescheduleFloor is the minimum countdown before a rate-limited job
// runs again, regardless of what the upstream retry hint asked for.
const rateLimitRescheduleFloor = 15 * time.Minute

// Crawler is the engine capability the runner depends on.
type Crawler interface {
	Crawl(ctx context.Context, cid string, category *models.Category) (*engine.Result, error)
}

// Runner executes one crawl job end to end: it owns the job's status
// transitions and heartbeats while the engine does the work.
type Runner struct {
	crawler    Crawler
	jobs       interfaces.JobStorage
	categories interfaces.CategoryStorage
	alerts     interfaces.AlertSink
	config     common.SchedulerConfig
	logger     arbor.ILogger
}

func NewRunner(crawler Crawler, jobs interfaces.JobStorage, categories interfaces.CategoryStorage, alerts interfaces.AlertSink, config common.SchedulerConfig, logger arbor.ILogger) *Runner {
	return &Runner{
		crawler:    crawler,
		jobs:       jobs,
		categories: categories,
		alerts:     alerts,
		config:     config,
		logger:     logger,
	}
}

// Run drives a job from pending to a terminal state. Rate-limited jobs go
// back to pending with a retry-at floor instead of failing.
func (r *Runner) Run(ctx context.Context, categoryID, jobID string) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}

	cid := job.CorrelationID
	if cid == "" {
		cid = common.NewCorrelationID()
		job.CorrelationID = cid
	}

	category, err := r.categories.GetByID(ctx, categoryID)
	if err != nil {
		r.logger.Warn().
			Str("correlation_id", cid).
			Str("job_id", jobID).
			Str("category_id", categoryID).
			Err(err).
			Msg("Category lookup failed, failing job")
		return r.jobs.UpdateStatus(ctx, jobID, models.JobStatusFailed, "category not found: "+categoryID)
	}

	if !category.IsActive {
		r.logger.Info().
			Str("correlation_id", cid).
			Str("job_id", jobID).
			Str("category", category.Name).
			Msg("Category not active, completing job without work")
		return r.jobs.UpdateStatus(ctx, jobID, models.JobStatusCompleted, "not active")
	}

	if err := r.jobs.UpdateStatus(ctx, jobID, models.JobStatusRunning, ""); err != nil {
		return err
	}

	jobCtx := ctx
	if r.config.JobExecutionTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, r.config.JobExecutionTimeout)
		defer cancel()
	}

	// The engine reports each pipeline step so long crawls keep the job's
	// updated_at moving and the stale sweep leaves them alone.
	jobCtx = engine.WithHeartbeat(jobCtx, func(string) {
		r.heartbeat(ctx, jobID)
	})

	r.heartbeat(ctx, jobID)

	result, err := r.crawler.Crawl(jobCtx, cid, category)
	if err != nil {
		return r.handleFailure(ctx, cid, job, category, err)
	}

	job, err = r.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = models.JobStatusCompleted
	job.ArticlesFound = result.ArticlesFound
	job.ArticlesSaved = result.ArticlesSaved
	now := time.Now()
	job.CompletedAt = &now
	if err := r.jobs.Update(ctx, job); err != nil {
		return err
	}

	r.logger.Info().
		Str("correlation_id", cid).
		Str("job_id", jobID).
		Str("category", category.Name).
		Int("articles_found", result.ArticlesFound).
		Int("articles_saved", result.ArticlesSaved).
		Msg("Job completed")

	return nil
}

func (r *Runner) handleFailure(ctx context.Context, cid string, job *models.CrawlJob, category *models.Category, crawlErr error) error {
	if errs.KindOf(crawlErr) == errs.KindRateLimitExceeded {
		return r.reschedule(ctx, cid, job, crawlErr)
	}

	r.logger.Warn().
		Str("correlation_id", cid).
		Str("job_id", job.ID).
		Str("category", category.Name).
		Err(crawlErr).
		Msg("Job failed")

	if r.alerts != nil {
		r.alerts.Dispatch(models.Alert{
			Type:        models.AlertTaskFailure,
			Severity:    models.SeverityMedium,
			Message:     "crawl job failed for category " + category.Name,
			ServiceName: "job_runner",
			Details: map[string]interface{}{
				"job_id":      job.ID,
				"category_id": category.ID,
				"error":       crawlErr.Error(),
			},
			Timestamp: time.Now(),
		})
	}

	return r.jobs.UpdateStatus(ctx, job.ID, models.JobStatusFailed, crawlErr.Error())
}

// reschedule puts a rate-limited job back to pending with a retry-at no
// sooner than the 15 minute floor.
func (r *Runner) reschedule(ctx context.Context, cid string, job *models.CrawlJob, cause error) error {
	delay := rateLimitRescheduleFloor
	if hint, ok := errs.RetryAfter(cause); ok && hint > delay {
		delay = hint
	}

	fresh, err := r.jobs.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	retryAt := time.Now().Add(delay)
	fresh.Status = models.JobStatusPending
	fresh.StartedAt = nil
	fresh.RetryAt = &retryAt
	fresh.ErrorMessage = cause.Error()

	r.logger.Warn().
		Str("correlation_id", cid).
		Str("job_id", job.ID).
		Dur("retry_in", delay).
		Msg("Rate limited, rescheduling job")

	if r.alerts != nil {
		r.alerts.Dispatch(models.Alert{
			Type:        models.AlertRateLimitExceeded,
			Severity:    models.SeverityMedium,
			Message:     "crawl rate limited, job rescheduled",
			ServiceName: "job_runner",
			Details: map[string]interface{}{
				"job_id":   job.ID,
				"retry_at": retryAt,
			},
			Timestamp: time.Now(),
		})
	}

	return r.jobs.Update(ctx, fresh)
}

func (r *Runner) heartbeat(ctx context.Context, jobID string) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	job.Heartbeat(time.Now())
	if err := r.jobs.Update(ctx, job); err != nil {
		r.logger.Debug().Str("job_id", jobID).Err(err).Msg("Heartbeat update failed")
	}
}
