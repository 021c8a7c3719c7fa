package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// JobStorage implements the JobStorage interface for Badger.
type JobStorage struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance.
func NewJobStorage(store *badgerhold.Store, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		store:  store,
		logger: logger,
	}
}

func (s *JobStorage) Create(ctx context.Context, job *models.CrawlJob) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	if err := s.store.Insert(job.ID, job); err != nil {
		return errs.DatabaseConnection(err)
	}
	return nil
}

func (s *JobStorage) Get(ctx context.Context, jobID string) (*models.CrawlJob, error) {
	var job models.CrawlJob
	if err := s.store.Get(jobID, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", jobID)
		}
		return nil, errs.DatabaseConnection(err)
	}
	return &job, nil
}

func (s *JobStorage) Update(ctx context.Context, job *models.CrawlJob) error {
	job.UpdatedAt = time.Now()
	if err := s.store.Update(job.ID, job); err != nil {
		return errs.DatabaseConnection(err)
	}
	return nil
}

func (s *JobStorage) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, errorMsg string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}

	now := time.Now()
	job.Status = status
	job.UpdatedAt = now
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}

	switch status {
	case models.JobStatusRunning:
		job.StartedAt = &now
	case models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusManualReview:
		job.CompletedAt = &now
	}

	if err := s.store.Update(jobID, job); err != nil {
		return errs.DatabaseConnection(err)
	}
	return nil
}

func (s *JobStorage) GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.CrawlJob, error) {
	var jobs []models.CrawlJob
	if err := s.store.Find(&jobs, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, errs.DatabaseConnection(err)
	}
	return toJobPointers(jobs), nil
}

func (s *JobStorage) GetFailedJobsSince(ctx context.Context, since time.Time) ([]*models.CrawlJob, error) {
	var jobs []models.CrawlJob
	query := badgerhold.Where("Status").Eq(models.JobStatusFailed).And("UpdatedAt").Ge(since)
	if err := s.store.Find(&jobs, query); err != nil {
		return nil, errs.DatabaseConnection(err)
	}
	return toJobPointers(jobs), nil
}

func (s *JobStorage) GetStuckJobs(ctx context.Context, threshold time.Duration) ([]*models.CrawlJob, error) {
	var jobs []models.CrawlJob
	if err := s.store.Find(&jobs, badgerhold.Where("Status").Eq(models.JobStatusRunning)); err != nil {
		return nil, errs.DatabaseConnection(err)
	}

	now := time.Now()
	stuck := make([]*models.CrawlJob, 0)
	for i := range jobs {
		if jobs[i].IsStuck(now, threshold) {
			stuck = append(stuck, &jobs[i])
		}
	}
	return stuck, nil
}

func (s *JobStorage) MarkForManualReview(ctx context.Context, jobID, reason string) error {
	s.logger.Warn().
		Str("job_id", jobID).
		Str("reason", reason).
		Msg("Job marked for manual review")
	return s.UpdateStatus(ctx, jobID, models.JobStatusManualReview, reason)
}

// ResetStuckJobs transitions running jobs with stale heartbeats back to
// pending so the scheduler can pick them up again.
func (s *JobStorage) ResetStuckJobs(ctx context.Context, threshold time.Duration) (int, error) {
	stuck, err := s.GetStuckJobs(ctx, threshold)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, job := range stuck {
		job.Status = models.JobStatusPending
		job.StartedAt = nil
		job.UpdatedAt = time.Now()
		if err := s.store.Update(job.ID, job); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to reset stuck job")
			continue
		}
		reset++
	}

	if reset > 0 {
		s.logger.Info().Int("count", reset).Msg("Reset stuck jobs to pending")
	}
	return reset, nil
}

func (s *JobStorage) CleanupOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	var jobs []models.CrawlJob
	query := badgerhold.Where("Status").Eq(models.JobStatusCompleted).And("UpdatedAt").Lt(cutoff)
	if err := s.store.Find(&jobs, query); err != nil {
		return 0, errs.DatabaseConnection(err)
	}

	deleted := 0
	for i := range jobs {
		if err := s.store.Delete(jobs[i].ID, &models.CrawlJob{}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobs[i].ID).Msg("Failed to delete old job")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Info().Int("count", deleted).Int("days", days).Msg("Cleaned up completed jobs")
	}
	return deleted, nil
}

func (s *JobStorage) HasActiveJob(ctx context.Context, categoryID string) (bool, error) {
	for _, status := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning} {
		count, err := s.store.Count(&models.CrawlJob{},
			badgerhold.Where("CategoryID").Eq(categoryID).And("Status").Eq(status))
		if err != nil {
			return false, errs.DatabaseConnection(err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

func toJobPointers(jobs []models.CrawlJob) []*models.CrawlJob {
	out := make([]*models.CrawlJob, len(jobs))
	for i := range jobs {
		out[i] = &jobs[i]
	}
	return out
}
