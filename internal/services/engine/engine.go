package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
	"github.com/ternarybob/herald/internal/services/extractor"
	"github.com/ternarybob/herald/internal/services/relevance"
	"github.com/ternarybob/herald/internal/services/resolver"
	"github.com/ternarybob/herald/internal/services/search"
)

// Result summarizes one crawl: what was found, what survived scoring and how
// the save went.
type Result struct {
	ArticlesFound int
	ArticlesSaved int
	Counts        models.SaveCounts
	Articles      []*models.Article
}

// Engine runs the search, resolve, extract, score, persist pipeline for one
// category. Every step logs with the crawl's correlation id.
type Engine struct {
	search    *search.Client
	resolver  *resolver.Resolver
	extractor *extractor.Extractor
	articles  interfaces.ArticleStorage
	config    *common.Config
	logger    arbor.ILogger

	// advanced drops articles scoring below the relevance threshold instead
	// of keeping everything.
	advanced bool
}

func New(searchClient *search.Client, res *resolver.Resolver, ext *extractor.Extractor, articles interfaces.ArticleStorage, config *common.Config, logger arbor.ILogger) *Engine {
	return &Engine{
		search:    searchClient,
		resolver:  res,
		extractor: ext,
		articles:  articles,
		config:    config,
		logger:    logger,
		advanced:  true,
	}
}

// Crawl runs the full pipeline for a category using its configured period.
func (e *Engine) Crawl(ctx context.Context, cid string, category *models.Category) (*Result, error) {
	period := category.CrawlPeriod
	if period == "" {
		period = "1d"
	}

	googleURLs, err := e.search.Search(ctx, cid,
		category.Keywords, category.ExcludeKeywords,
		e.config.Search.MaxResultsPerSearch,
		category.Language, category.Country,
		period, nil, nil)
	if err != nil {
		return nil, err
	}
	Beat(ctx, "search")

	return e.processURLs(ctx, cid, category, googleURLs)
}

// CrawlRange runs the pipeline for an explicit date range using the daily
// sliding window.
func (e *Engine) CrawlRange(ctx context.Context, cid string, category *models.Category, start, end time.Time) (*Result, error) {
	googleURLs, err := e.search.CrawlWithDailySlidingWindow(ctx, cid,
		category.Keywords, category.ExcludeKeywords,
		e.config.Search.MaxResultsPerSearch,
		category.Language, category.Country,
		start, end)
	if err != nil {
		return nil, err
	}
	Beat(ctx, "search")

	return e.processURLs(ctx, cid, category, googleURLs)
}

func (e *Engine) processURLs(ctx context.Context, cid string, category *models.Category, googleURLs []string) (*Result, error) {
	if len(googleURLs) == 0 {
		e.logger.Info().
			Str("correlation_id", cid).
			Str("category", category.Name).
			Msg("Search returned no URLs")
		return &Result{}, nil
	}

	resolved := e.resolver.ResolveBatch(ctx, cid, googleURLs)
	Beat(ctx, "resolve")

	articles := e.extractResolved(ctx, cid, resolved)

	// URLs that defeated every cheap strategy get the shared-browser batch.
	if unresolved := unresolvedGoogleURLs(googleURLs, resolved); len(unresolved) > 0 {
		for _, r := range e.extractor.ExtractBatch(ctx, cid, unresolved) {
			if r.Success && r.Article != nil {
				articles = append(articles, r.Article)
			}
		}
	}
	Beat(ctx, "extract")

	if len(articles) == 0 {
		e.logger.Warn().
			Str("correlation_id", cid).
			Str("category", category.Name).
			Int("urls", len(googleURLs)).
			Msg("No articles extracted")
		return &Result{ArticlesFound: 0}, nil
	}

	kept := e.scoreArticles(cid, category, articles)
	Beat(ctx, "score")

	counts, err := e.articles.BulkUpsertWithDedup(ctx, kept, category.ID, firstKeyword(category), searchQuery(category))
	if err != nil {
		return nil, err
	}
	Beat(ctx, "persist")

	result := &Result{
		ArticlesFound: len(articles),
		ArticlesSaved: counts.New + counts.Updated,
		Counts:        counts,
		Articles:      kept,
	}

	e.logger.Info().
		Str("correlation_id", cid).
		Str("category", category.Name).
		Int("found", result.ArticlesFound).
		Int("new", counts.New).
		Int("updated", counts.Updated).
		Int("skipped", counts.Skipped).
		Msg("Crawl completed")

	return result, nil
}

// extractResolved pulls articles from resolved publisher URLs under the
// extraction concurrency semaphore.
func (e *Engine) extractResolved(ctx context.Context, cid string, resolved []resolver.Resolved) []*models.Article {
	limit := e.config.Extractor.ConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var mu sync.Mutex
	var articles []*models.Article
	var wg sync.WaitGroup

	for _, r := range resolved {
		wg.Add(1)
		go func(r resolver.Resolved) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			article, err := e.extractor.ExtractMetadata(ctx, cid, r.PublisherURL)
			if err != nil || article == nil {
				if err != nil {
					e.logger.Debug().
						Str("correlation_id", cid).
						Str("url", r.PublisherURL).
						Err(err).
						Msg("Extraction failed")
				}
				return
			}
			article.GoogleNewsURL = r.GoogleURL
			article.FinalRedirectedURL = r.PublisherURL

			mu.Lock()
			articles = append(articles, article)
			mu.Unlock()
		}(r)
	}
	wg.Wait()

	return articles
}

// scoreArticles attaches relevance scores and, in advanced mode, drops
// articles below the threshold.
func (e *Engine) scoreArticles(cid string, category *models.Category, articles []*models.Article) []*models.Article {
	threshold := e.config.Recovery.RelevanceThreshold

	kept := make([]*models.Article, 0, len(articles))
	for _, a := range articles {
		score, matched := relevance.Score(a.Title, a.Content, category.Keywords, category.ExcludeKeywords)
		a.RelevanceScore = score
		a.KeywordsMatched = matched

		if e.advanced && !relevance.IsRelevant(score, threshold) {
			e.logger.Debug().
				Str("correlation_id", cid).
				Str("title", a.Title).
				Float64("score", score).
				Msg("Article below relevance threshold, dropping")
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func unresolvedGoogleURLs(all []string, resolved []resolver.Resolved) []string {
	done := make(map[string]bool, len(resolved))
	for _, r := range resolved {
		done[r.GoogleURL] = true
	}

	var out []string
	for _, u := range all {
		if !done[u] {
			out = append(out, u)
		}
	}
	return out
}

func firstKeyword(category *models.Category) string {
	if len(category.Keywords) > 0 {
		return category.Keywords[0]
	}
	return ""
}

func searchQuery(category *models.Category) string {
	return search.BuildAdvanced(category.Keywords, category.ExcludeKeywords)
}
