package extractor

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/herald/internal/browser"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/models"
)

// browserBatchSize is how many Google News URLs share one browser process.
const browserBatchSize = 10

const (
	methodGoogleNewsBrowser    = "google_news_playwright"
	methodGoogleNewsNoRedirect = "google_news_no_redirect"
)

// Result is the per-URL outcome of a batch extraction. Every input URL yields
// exactly one Result, success or not.
type Result struct {
	URL      string
	FinalURL string
	Article  *models.Article
	Err      error
	Method   string
	Success  bool
}

// ExtractBatch partitions URLs into Google News redirects and regular
// publisher URLs. Regular URLs go through the standard single-URL path;
// Google News URLs share headless browsers in batches.
func (e *Extractor) ExtractBatch(ctx context.Context, cid string, urls []string) []Result {
	var googleURLs, regularURLs []string
	for _, u := range urls {
		if isGoogleNewsURL(u) {
			googleURLs = append(googleURLs, u)
		} else {
			regularURLs = append(regularURLs, u)
		}
	}

	results := make([]Result, 0, len(urls))

	for _, u := range regularURLs {
		article, err := e.ExtractMetadata(ctx, cid, u)
		results = append(results, Result{
			URL:     u,
			Article: article,
			Err:     err,
			Success: err == nil && article != nil,
		})
	}

	for start := 0; start < len(googleURLs); start += browserBatchSize {
		end := start + browserBatchSize
		if end > len(googleURLs) {
			end = len(googleURLs)
		}

		if start > 0 {
			uniformSleep(ctx, 5*time.Second, 10*time.Second)
		}

		batch := googleURLs[start:end]
		results = append(results, e.ProcessBatchWithSingleBrowser(ctx, cid, batch)...)
	}

	return results
}

// ProcessBatchWithSingleBrowser resolves and extracts a batch of Google News
// URLs through one shared browser process, with tabs bounded by MaxTabs.
func (e *Extractor) ProcessBatchWithSingleBrowser(ctx context.Context, cid string, urls []string) []Result {
	results := make([]Result, len(urls))

	if e.launcher == nil || !e.browserConfig.Enabled {
		for i, u := range urls {
			results[i] = Result{URL: u, Err: errs.Internal("browser extraction disabled"), Success: false}
		}
		return results
	}

	b, err := e.launcher.Launch(ctx, e.browserConfig)
	if err != nil {
		e.logger.Warn().
			Str("correlation_id", cid).
			Err(err).
			Msg("Browser launch failed for batch")
		for i, u := range urls {
			results[i] = Result{URL: u, Err: err, Success: false}
		}
		return results
	}
	defer b.Close()

	maxTabs := e.browserConfig.MaxTabs
	if maxTabs <= 0 {
		maxTabs = 1
	}
	sem := make(chan struct{}, maxTabs)

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(idx int, googleURL string) {
			defer wg.Done()

			if idx > 0 {
				uniformSleep(ctx, time.Second, 3*time.Second)
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = e.processTab(ctx, cid, b, googleURL)
		}(i, u)
	}
	wg.Wait()

	return results
}

// processTab opens one tab, waits out the Google News redirect and, when the
// page lands off Google, runs the standard extraction on the final URL.
func (e *Extractor) processTab(ctx context.Context, cid string, b browser.Browser, googleURL string) Result {
	tab, err := b.NewTab(ctx)
	if err != nil {
		return Result{URL: googleURL, Err: err, Success: false}
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, googleURL, e.browserConfig.Timeout); err != nil {
		return Result{URL: googleURL, Err: err, Success: false}
	}

	sleep(ctx, e.browserConfig.RedirectSleep)

	finalURL, err := tab.FinalURL(ctx)
	if err != nil {
		return Result{URL: googleURL, Err: err, Success: false}
	}

	// Slow redirects need a second chance after network idle.
	if finalURL == googleURL || isGoogleHost(finalURL) {
		if err := tab.WaitNetworkIdle(ctx, 15*time.Second); err == nil {
			sleep(ctx, 5*time.Second)
			if u, err := tab.FinalURL(ctx); err == nil {
				finalURL = u
			}
		}
	}

	if finalURL == googleURL || isGoogleHost(finalURL) {
		e.metrics.record(outcomeBatchNoRedirect)
		return Result{
			URL:      googleURL,
			FinalURL: finalURL,
			Err:      errs.ExtractionNetwork(googleURL, nil).WithDetail("reason", "redirect never left google"),
			Method:   methodGoogleNewsNoRedirect,
			Success:  false,
		}
	}

	article, err := e.extractStandard(ctx, finalURL)
	if err != nil {
		e.metrics.record(outcomeFailed)
		e.logger.Debug().
			Str("correlation_id", cid).
			Str("final_url", finalURL).
			Err(err).
			Msg("Extraction failed after browser redirect")
		return Result{URL: googleURL, FinalURL: finalURL, Err: err, Success: false}
	}

	article.ExtractionMethod = methodGoogleNewsBrowser
	article.GoogleNewsURL = googleURL
	article.FinalRedirectedURL = finalURL

	e.metrics.record(outcomeBatchBrowser)
	return Result{URL: googleURL, FinalURL: finalURL, Article: article, Method: methodGoogleNewsBrowser, Success: true}
}

func isGoogleNewsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Hostname()), "news.google.com")
}

func isGoogleHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "google.com" || strings.HasSuffix(host, ".google.com")
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// uniformSleep pauses for a random duration in [min, max); anti-detection
// pacing between tabs and batches.
func uniformSleep(ctx context.Context, min, max time.Duration) {
	d := min + time.Duration(rand.Int63n(int64(max-min)))
	sleep(ctx, d)
}
