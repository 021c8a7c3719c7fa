package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/herald/internal/models"
)

// ArticleStorage is the persistence contract for articles and their category
// associations. Implementations must keep the url_hash uniqueness invariant:
// a second save of the same source URL updates last_seen instead of inserting.
type ArticleStorage interface {
	GetByURLHash(ctx context.Context, hash string) (*models.Article, error)
	Insert(ctx context.Context, article *models.Article) (*models.Article, error)
	UpdateLastSeen(ctx context.Context, articleID string) error
	// EnsureCategoryAssociation creates or refreshes the (article, category)
	// association. Idempotent: two consecutive calls leave one row.
	EnsureCategoryAssociation(ctx context.Context, articleID, categoryID string, relevance float64, keywordMatched, query string) error
	// BulkUpsertWithDedup applies dedup-and-save semantics for a batch.
	// Insert-plus-associate runs inside a single transaction per article.
	BulkUpsertWithDedup(ctx context.Context, articles []*models.Article, categoryID, keywordMatched, query string) (models.SaveCounts, error)
	Count(ctx context.Context) (int, error)
	GetAssociations(ctx context.Context, articleID string) ([]*models.ArticleCategory, error)
}

// CategoryStorage is the persistence contract for crawl categories.
type CategoryStorage interface {
	Save(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	GetByName(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	// ListSchedulable returns active categories with scheduling enabled whose
	// next run is due and whose disabled window (if any) has passed.
	ListSchedulable(ctx context.Context, now time.Time) ([]*models.Category, error)
	DisableTemporarily(ctx context.Context, id, reason string, until time.Time) error
	UpdateScheduleTimes(ctx context.Context, id string, lastRun, nextRun time.Time) error
}

// JobStorage is the persistence contract for crawl jobs.
type JobStorage interface {
	Create(ctx context.Context, job *models.CrawlJob) error
	Get(ctx context.Context, jobID string) (*models.CrawlJob, error)
	Update(ctx context.Context, job *models.CrawlJob) error
	UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, errorMsg string) error
	GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.CrawlJob, error)
	GetFailedJobsSince(ctx context.Context, since time.Time) ([]*models.CrawlJob, error)
	GetStuckJobs(ctx context.Context, threshold time.Duration) ([]*models.CrawlJob, error)
	MarkForManualReview(ctx context.Context, jobID, reason string) error
	ResetStuckJobs(ctx context.Context, threshold time.Duration) (int, error)
	CleanupOlderThan(ctx context.Context, days int) (int, error)
	// HasActiveJob reports whether the category has a pending or running job.
	HasActiveJob(ctx context.Context, categoryID string) (bool, error)
}
