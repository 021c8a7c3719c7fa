package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/models"
	"github.com/ternarybob/herald/internal/services/engine"
	badgerstore "github.com/ternarybob/herald/internal/storage/badger"
)

// fakeCrawler returns a scripted result or error.
type fakeCrawler struct {
	result  *engine.Result
	err     error
	calls   int
	onCrawl func(ctx context.Context)
}

func (f *fakeCrawler) Crawl(ctx context.Context, cid string, category *models.Category) (*engine.Result, error) {
	f.calls++
	if f.onCrawl != nil {
		f.onCrawl(ctx)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type runnerFixture struct {
	runner   *Runner
	store    *badgerstore.Manager
	crawler  *fakeCrawler
	category *models.Category
	job      *models.CrawlJob
}

func newRunnerFixture(t *testing.T, crawler *fakeCrawler) *runnerFixture {
	t.Helper()
	ctx := context.Background()

	store, err := badgerstore.NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "herald-test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	category := &models.Category{
		ID:       common.NewCategoryID(),
		Name:     "crypto",
		Keywords: []string{"bitcoin"},
		Language: "vi",
		Country:  "VN",
		IsActive: true,
	}
	require.NoError(t, store.Categories.Save(ctx, category))

	job := &models.CrawlJob{
		ID:            common.NewJobID(),
		CategoryID:    category.ID,
		JobType:       models.JobTypeOnDemand,
		Status:        models.JobStatusPending,
		CorrelationID: common.NewCorrelationID(),
	}
	require.NoError(t, store.Jobs.Create(ctx, job))

	runner := NewRunner(crawler, store.Jobs, store.Categories, nil,
		common.SchedulerConfig{JobExecutionTimeout: time.Minute}, common.GetLogger())

	return &runnerFixture{
		runner:   runner,
		store:    store,
		crawler:  crawler,
		category: category,
		job:      job,
	}
}

func TestRunner_CompletesWithCounts(t *testing.T) {
	fx := newRunnerFixture(t, &fakeCrawler{
		result: &engine.Result{ArticlesFound: 3, ArticlesSaved: 2},
	})
	ctx := context.Background()

	require.NoError(t, fx.runner.Run(ctx, fx.category.ID, fx.job.ID))

	got, err := fx.store.Jobs.Get(ctx, fx.job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.ArticlesFound)
	assert.Equal(t, 2, got.ArticlesSaved)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, fx.crawler.calls)
}

func TestRunner_StepHeartbeatBumpsUpdatedAt(t *testing.T) {
	crawler := &fakeCrawler{result: &engine.Result{}}
	fx := newRunnerFixture(t, crawler)
	ctx := context.Background()

	var before, after time.Time
	crawler.onCrawl = func(crawlCtx context.Context) {
		job, err := fx.store.Jobs.Get(ctx, fx.job.ID)
		require.NoError(t, err)
		before = job.UpdatedAt

		time.Sleep(5 * time.Millisecond)
		engine.Beat(crawlCtx, "extract")

		job, err = fx.store.Jobs.Get(ctx, fx.job.ID)
		require.NoError(t, err)
		after = job.UpdatedAt
	}

	require.NoError(t, fx.runner.Run(ctx, fx.category.ID, fx.job.ID))
	assert.True(t, after.After(before), "a mid-crawl step must refresh the job's updated_at")
}

func TestRunner_MissingCategoryFailsJob(t *testing.T) {
	fx := newRunnerFixture(t, &fakeCrawler{result: &engine.Result{}})
	ctx := context.Background()

	require.NoError(t, fx.runner.Run(ctx, "cat_missing", fx.job.ID))

	got, err := fx.store.Jobs.Get(ctx, fx.job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "category not found")
	assert.Zero(t, fx.crawler.calls)
}

func TestRunner_InactiveCategoryCompletesWithoutWork(t *testing.T) {
	fx := newRunnerFixture(t, &fakeCrawler{result: &engine.Result{}})
	ctx := context.Background()

	fx.category.IsActive = false
	require.NoError(t, fx.store.Categories.Save(ctx, fx.category))

	require.NoError(t, fx.runner.Run(ctx, fx.category.ID, fx.job.ID))

	got, err := fx.store.Jobs.Get(ctx, fx.job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, "not active", got.ErrorMessage)
	assert.Zero(t, fx.crawler.calls)
}

func TestRunner_CrawlErrorFailsJob(t *testing.T) {
	fx := newRunnerFixture(t, &fakeCrawler{
		err: errs.ExtractionParsing("https://x", "everything broke"),
	})
	ctx := context.Background()

	require.NoError(t, fx.runner.Run(ctx, fx.category.ID, fx.job.ID))

	got, err := fx.store.Jobs.Get(ctx, fx.job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "everything broke")
}

func TestRunner_RateLimitReschedules(t *testing.T) {
	fx := newRunnerFixture(t, &fakeCrawler{
		err: errs.RateLimitExceeded(time.Minute),
	})
	ctx := context.Background()

	require.NoError(t, fx.runner.Run(ctx, fx.category.ID, fx.job.ID))

	got, err := fx.store.Jobs.Get(ctx, fx.job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	require.NotNil(t, got.RetryAt)

	// The 15 minute floor wins over the smaller upstream hint.
	minRetry := time.Now().Add(14 * time.Minute)
	assert.True(t, got.RetryAt.After(minRetry))
	assert.Nil(t, got.StartedAt)
}

func TestRunner_RateLimitHintAboveFloorWins(t *testing.T) {
	fx := newRunnerFixture(t, &fakeCrawler{
		err: errs.RateLimitExceeded(time.Hour),
	})
	ctx := context.Background()

	require.NoError(t, fx.runner.Run(ctx, fx.category.ID, fx.job.ID))

	got, err := fx.store.Jobs.Get(ctx, fx.job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.RetryAt)
	assert.True(t, got.RetryAt.After(time.Now().Add(59*time.Minute)))
}
