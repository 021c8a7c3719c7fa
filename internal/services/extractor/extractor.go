package extractor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/browser"
	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/httpclient"
	"github.com/ternarybob/herald/internal/models"
	"github.com/ternarybob/herald/internal/reliability"
)

// BreakerName is the circuit breaker protecting publisher fetches.
const BreakerName = "article_extraction"

const maxBodySize = 10 * 1024 * 1024

// Extractor turns publisher URLs into Article records. The standard path is
// download-then-parse under a split budget; the browser fallback handles
// JS-rendered pages when enabled.
type Extractor struct {
	config        common.ExtractorConfig
	browserConfig common.BrowserConfig
	client        *http.Client
	retrier       *reliability.Retrier
	breakers      *reliability.BreakerManager
	launcher      browser.Launcher
	domains       *domainLimiter
	metrics       *Metrics
	logger        arbor.ILogger
}

func New(config common.ExtractorConfig, browserConfig common.BrowserConfig, retrier *reliability.Retrier, breakers *reliability.BreakerManager, launcher browser.Launcher, logger arbor.ILogger) *Extractor {
	return &Extractor{
		config:        config,
		browserConfig: browserConfig,
		client:        httpclient.NewDefaultClient(config.Timeout),
		retrier:       retrier,
		breakers:      breakers,
		launcher:      launcher,
		domains:       newDomainLimiter(config.DomainDelay),
		metrics:       newMetrics(),
		logger:        logger,
	}
}

// Metrics exposes the extractor's outcome counters.
func (e *Extractor) Metrics() *Metrics {
	return e.metrics
}

// retryConfig derives the extraction retry policy from configuration; zero
// values fall back to the external-service defaults.
func (e *Extractor) retryConfig() reliability.RetryConfig {
	cfg := reliability.ExternalServiceConfig()
	cfg.MaxRetries = e.config.MaxRetries
	if e.config.RetryBaseDelay > 0 {
		cfg.BaseDelay = e.config.RetryBaseDelay
	}
	if e.config.RetryMultiplier > 0 {
		cfg.ExponentialBase = e.config.RetryMultiplier
	}
	return cfg
}

// ExtractMetadata extracts one article. The standard path runs under the
// retrier and breaker; if it ultimately fails and the browser is enabled, the
// fallback gets one shot. Returns nil article (no error) when the fallback
// also fails.
func (e *Extractor) ExtractMetadata(ctx context.Context, cid, url string) (*models.Article, error) {
	var article *models.Article

	err := e.retrier.Run(ctx, e.retryConfig(), cid, func(ctx context.Context) error {
		return e.breakers.CallWithBreaker(ctx, BreakerName, reliability.DefaultBreakerConfig(), cid, func(ctx context.Context) error {
			a, err := e.extractStandard(ctx, url)
			if err != nil {
				return err
			}
			article = a
			return nil
		})
	})
	if err == nil {
		e.metrics.record(outcomeStandard)
		return article, nil
	}

	if !e.browserConfig.Enabled || e.launcher == nil {
		e.metrics.record(outcomeFailed)
		return nil, err
	}

	e.logger.Debug().
		Str("correlation_id", cid).
		Str("url", url).
		Err(err).
		Msg("Standard extraction failed, trying browser fallback")

	a, ferr := e.extractWithBrowser(ctx, url)
	if ferr != nil {
		e.logger.Warn().
			Str("correlation_id", cid).
			Str("url", url).
			Err(ferr).
			Msg("Browser fallback extraction failed")
		e.metrics.record(outcomeFailed)
		return nil, err
	}
	e.metrics.record(outcomeBrowserFallback)
	return a, nil
}

// extractStandard downloads and parses under the split budget: half the
// total for the download, half for parsing.
func (e *Extractor) extractStandard(ctx context.Context, url string) (*models.Article, error) {
	half := e.config.Timeout / 2

	if err := e.domains.Wait(ctx, url); err != nil {
		return nil, errs.ExtractionNetwork(url, err)
	}

	downloadCtx, cancel := context.WithTimeout(ctx, half)
	defer cancel()

	html, err := e.download(downloadCtx, url)
	if err != nil {
		return nil, err
	}

	page, err := e.parseWithTimeout(ctx, html, url, half)
	if err != nil {
		return nil, err
	}

	return e.assemble(page, url, html), nil
}

func (e *Extractor) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errs.ExtractionParsing(url, "invalid url: %v", err)
	}
	httpclient.SetBrowserHeaders(req)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errs.ExtractionTimeout(url, e.config.Timeout/2)
		}
		return "", errs.ExtractionNetwork(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errs.RateLimitExceeded(0)
	}
	if resp.StatusCode >= 400 {
		return "", errs.ExtractionNetwork(url, nil).
			WithDetail("status_code", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", errs.ExtractionTimeout(url, e.config.Timeout/2)
		}
		return "", errs.ExtractionNetwork(url, err)
	}

	return string(body), nil
}

// parseWithTimeout dispatches CPU-bound parsing to its own goroutine so the
// parse half of the budget is enforced even on pathological documents.
func (e *Extractor) parseWithTimeout(ctx context.Context, html, url string, timeout time.Duration) (*ParsedPage, error) {
	type result struct {
		page *ParsedPage
		err  error
	}
	done := make(chan result, 1)

	go func() {
		page, err := ParseHTML(html, url)
		done <- result{page, err}
	}()

	select {
	case r := <-done:
		return r.page, r.err
	case <-time.After(timeout):
		return nil, errs.ExtractionTimeout(url, timeout)
	case <-ctx.Done():
		return nil, errs.ExtractionTimeout(url, timeout)
	}
}

// extractWithBrowser renders the page and feeds the result through the same
// parse contract.
func (e *Extractor) extractWithBrowser(ctx context.Context, url string) (*models.Article, error) {
	b, err := e.launcher.Launch(ctx, e.browserConfig)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	tab, err := b.NewTab(ctx)
	if err != nil {
		return nil, err
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, url, e.browserConfig.Timeout); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(e.browserConfig.WaitTime):
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}

	page, err := ParseHTML(html, url)
	if err != nil {
		return nil, err
	}
	return e.assemble(page, url, html), nil
}

// assemble builds the Article record from a parsed page.
func (e *Extractor) assemble(page *ParsedPage, url, rawHTML string) *models.Article {
	now := time.Now()

	title := page.Title
	if len(title) > models.MaxTitleLength {
		title = title[:models.MaxTitleLength]
	}

	content := page.Content
	if e.config.StoreMarkdown {
		if md, err := ContentMarkdown(rawHTML); err == nil && md != "" {
			content = md
		}
	}
	if len(content) <= e.config.MinContentLength {
		content = ""
	}

	article := &models.Article{
		ID:          common.NewArticleID(),
		Title:       title,
		Content:     content,
		Author:      strings.Join(page.Authors, ", "),
		PublishDate: page.PublishDate,
		SourceURL:   url,
		ImageURL:    page.ImageURL,
		URLHash:     models.HashURL(url),
		ContentHash: models.HashContent(content),
		FirstSeen:   now,
		LastSeen:    now,
		ExtractedAt: now,
	}
	return article
}
