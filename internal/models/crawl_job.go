package models

import (
	"time"
)

// JobStatus represents the state of a crawl job.
type JobStatus string

const (
	JobStatusPending      JobStatus = "pending"
	JobStatusRunning      JobStatus = "running"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
	JobStatusStuck        JobStatus = "stuck"
	JobStatusManualReview JobStatus = "manual_review"
)

// JobType distinguishes scheduled sweeps from operator-triggered runs.
type JobType string

const (
	JobTypeScheduled JobType = "scheduled"
	JobTypeOnDemand  JobType = "on_demand"
)

// CrawlJob tracks one unit of crawl work for a category.
//
// Lifecycle: pending -> running -> (completed | failed). A running job with no
// heartbeat past the stuck threshold is reset to pending by the scheduler.
type CrawlJob struct {
	ID            string                 `json:"id" badgerhold:"key"`
	CategoryID    string                 `json:"category_id" badgerhold:"index"`
	JobType       JobType                `json:"job_type"`
	Status        JobStatus              `json:"status" badgerhold:"index"`
	CreatedAt     time.Time              `json:"created_at"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt     time.Time              `json:"updated_at"` // Heartbeat; bumped at step boundaries
	ArticlesFound int                    `json:"articles_found"`
	ArticlesSaved int                    `json:"articles_saved"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	CorrelationID string                 `json:"correlation_id"`
	TaskID        string                 `json:"task_id,omitempty"`
	Priority      int                    `json:"priority"`
	RetryAt       *time.Time             `json:"retry_at,omitempty"` // Earliest time a rescheduled job may run
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *CrawlJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusManualReview:
		return true
	}
	return false
}

// IsStuck reports whether a running job has gone without a heartbeat for
// longer than the threshold.
func (j *CrawlJob) IsStuck(now time.Time, threshold time.Duration) bool {
	if j.Status != JobStatusRunning {
		return false
	}
	return now.Sub(j.UpdatedAt) > threshold
}

// Heartbeat bumps UpdatedAt. Callers persist the job afterwards.
func (j *CrawlJob) Heartbeat(now time.Time) {
	j.UpdatedAt = now
}
