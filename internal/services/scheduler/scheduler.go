package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// JobExecutor runs a crawl job; the scheduler only decides when.
type JobExecutor interface {
	Run(ctx context.Context, categoryID, jobID string) error
}

// Scheduler sweeps for due categories every minute, dispatches jobs, and runs
// the hygiene sweeps (stuck reset, cleanup, health).
type Scheduler struct {
	cron       *cron.Cron
	executor   JobExecutor
	jobs       interfaces.JobStorage
	categories interfaces.CategoryStorage
	alerts     interfaces.AlertSink
	config     common.SchedulerConfig
	logger     arbor.ILogger

	mu      sync.Mutex
	running int

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(executor JobExecutor, jobs interfaces.JobStorage, categories interfaces.CategoryStorage, alerts interfaces.AlertSink, config common.SchedulerConfig, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		executor:   executor,
		jobs:       jobs,
		categories: categories,
		alerts:     alerts,
		config:     config,
		logger:     logger,
	}
}

// Start registers the sweeps and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.AddFunc("* * * * *", func() { s.Sweep(s.baseCtx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("*/10 * * * *", func() { s.HealthSweep(s.baseCtx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 * * * *", func() { s.CleanupSweep(s.baseCtx) }); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Int("max_concurrent_jobs", s.config.MaxConcurrentJobs).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// Sweep creates and dispatches jobs for due categories, then re-dispatches
// pending jobs whose retry time has passed.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := time.Now()

	due, err := s.categories.ListSchedulable(ctx, now)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Schedulable category query failed")
		return
	}

	for _, category := range due {
		if !s.acquireSlot() {
			s.logger.Debug().
				Int("cap", s.config.MaxConcurrentJobs).
				Msg("Concurrent job cap reached, deferring remaining categories")
			return
		}

		active, err := s.jobs.HasActiveJob(ctx, category.ID)
		if err != nil || active {
			s.releaseSlot()
			continue
		}

		job := &models.CrawlJob{
			ID:            common.NewJobID(),
			CategoryID:    category.ID,
			JobType:       models.JobTypeScheduled,
			Status:        models.JobStatusPending,
			CorrelationID: common.NewCorrelationID(),
			CreatedAt:     now,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			s.releaseSlot()
			s.logger.Warn().Err(err).Str("category", category.Name).Msg("Job create failed")
			continue
		}

		nextRun := now.Add(category.ScheduleInterval())
		if err := s.categories.UpdateScheduleTimes(ctx, category.ID, now, nextRun); err != nil {
			s.logger.Warn().Err(err).Str("category", category.Name).Msg("Schedule time update failed")
		}

		s.dispatch(category.ID, job.ID)
	}

	s.dispatchRetries(ctx, now)
}

// dispatchRetries picks up pending jobs that were rescheduled after a rate
// limit and whose retry time has arrived.
func (s *Scheduler) dispatchRetries(ctx context.Context, now time.Time) {
	pending, err := s.jobs.GetByStatus(ctx, models.JobStatusPending)
	if err != nil {
		return
	}

	for _, job := range pending {
		if job.RetryAt == nil || now.Before(*job.RetryAt) {
			continue
		}
		if !s.acquireSlot() {
			return
		}

		job.RetryAt = nil
		if err := s.jobs.Update(ctx, job); err != nil {
			s.releaseSlot()
			continue
		}
		s.dispatch(job.CategoryID, job.ID)
	}
}

func (s *Scheduler) dispatch(categoryID, jobID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.releaseSlot()

		if err := s.executor.Run(s.baseCtx, categoryID, jobID); err != nil {
			s.logger.Warn().
				Str("job_id", jobID).
				Str("category_id", categoryID).
				Err(err).
				Msg("Job execution error")
		}
	}()
}

// CleanupSweep deletes old completed jobs and resets stuck running jobs back
// to pending.
func (s *Scheduler) CleanupSweep(ctx context.Context) {
	if deleted, err := s.jobs.CleanupOlderThan(ctx, s.config.JobCleanupDays); err != nil {
		s.logger.Warn().Err(err).Msg("Job cleanup failed")
	} else if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Old jobs cleaned up")
	}

	if reset, err := s.jobs.ResetStuckJobs(ctx, s.config.StuckThreshold); err != nil {
		s.logger.Warn().Err(err).Msg("Stuck job reset failed")
	} else if reset > 0 {
		s.logger.Warn().Int("reset", reset).Msg("Stuck jobs reset to pending")
	}
}

// HealthSweep counts job states and raises a degraded alert when stuck jobs
// exist.
func (s *Scheduler) HealthSweep(ctx context.Context) {
	running, err := s.jobs.GetByStatus(ctx, models.JobStatusRunning)
	if err != nil {
		return
	}
	pending, _ := s.jobs.GetByStatus(ctx, models.JobStatusPending)

	stuck, err := s.jobs.GetStuckJobs(ctx, s.config.StuckThreshold)
	if err != nil {
		return
	}

	s.logger.Info().
		Int("running", len(running)).
		Int("pending", len(pending)).
		Int("stuck", len(stuck)).
		Msg("Scheduler health")

	if len(stuck) > 0 && s.alerts != nil {
		s.alerts.Dispatch(models.Alert{
			Type:        models.AlertServiceDegraded,
			Severity:    models.SeverityHigh,
			Message:     "stuck crawl jobs detected",
			ServiceName: "scheduler",
			Details: map[string]interface{}{
				"stuck_count":   len(stuck),
				"running_count": len(running),
			},
			Timestamp: time.Now(),
		})
	}
}

func (s *Scheduler) acquireSlot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running >= s.config.MaxConcurrentJobs {
		return false
	}
	s.running++
	return true
}

func (s *Scheduler) releaseSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running > 0 {
		s.running--
	}
}
