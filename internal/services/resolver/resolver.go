package resolver

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/browser"
	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/httpclient"
)

// Strategy identifies which resolution strategy produced a publisher URL.
type Strategy string

const (
	StrategyQueryParam    Strategy = "query_param"
	StrategyRedirectChase Strategy = "redirect_chase"
	StrategyBase64Decode  Strategy = "base64_decode"
	StrategyBrowser       Strategy = "browser"
)

// Metrics tracks per-strategy hit counts and batch outcomes.
type Metrics struct {
	mu        sync.Mutex
	hits      map[Strategy]int
	resolved  int
	attempted int
}

func newMetrics() *Metrics {
	return &Metrics{hits: make(map[Strategy]int)}
}

func (m *Metrics) record(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[s]++
	m.resolved++
}

func (m *Metrics) attempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempted++
}

// Snapshot returns hit counts by strategy plus totals.
func (m *Metrics) Snapshot() (map[Strategy]int, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := make(map[Strategy]int, len(m.hits))
	for k, v := range m.hits {
		hits[k] = v
	}
	return hits, m.resolved, m.attempted
}

// Resolved pairs a Google News URL with the publisher URL it resolved to.
type Resolved struct {
	GoogleURL    string
	PublisherURL string
	Strategy     Strategy
}

// Resolver converts Google News redirect URLs into publisher URLs through an
// ordered strategy pipeline. Strategies 3 and 4 are best-effort; hit metrics
// tell you when they rot.
type Resolver struct {
	config         common.ResolverConfig
	client         *http.Client
	launcher       browser.Launcher
	browserConfig  common.BrowserConfig
	browserEnabled bool
	logger         arbor.ILogger
	metrics        *Metrics
}

func New(config common.ResolverConfig, browserConfig common.BrowserConfig, launcher browser.Launcher, logger arbor.ILogger) *Resolver {
	return &Resolver{
		config:         config,
		client:         httpclient.NewNoRedirectClient(config.RedirectHopTimeout),
		launcher:       launcher,
		browserConfig:  browserConfig,
		browserEnabled: browserConfig.Enabled && launcher != nil,
		logger:         logger,
		metrics:        newMetrics(),
	}
}

// Metrics exposes the resolver's counters.
func (r *Resolver) Metrics() *Metrics {
	return r.metrics
}

// ResolveBatch resolves up to MaxURLsPerBatch URLs within the batch budget.
// On budget exhaustion it returns what it has. Batches resolving under 20%
// log at error level.
func (r *Resolver) ResolveBatch(ctx context.Context, cid string, urls []string) []Resolved {
	if len(urls) > r.config.MaxURLsPerBatch {
		r.logger.Debug().
			Str("correlation_id", cid).
			Int("total", len(urls)).
			Int("cap", r.config.MaxURLsPerBatch).
			Msg("Truncating resolution batch to cap")
		urls = urls[:r.config.MaxURLsPerBatch]
	}

	batchCtx, cancel := context.WithTimeout(ctx, r.config.BatchBudget)
	defer cancel()

	resolved := make([]Resolved, 0, len(urls))
	for _, u := range urls {
		if batchCtx.Err() != nil {
			r.logger.Warn().
				Str("correlation_id", cid).
				Int("resolved", len(resolved)).
				Int("total", len(urls)).
				Msg("Batch budget exhausted, stopping resolution")
			break
		}

		r.metrics.attempt()
		publisher, strategy, ok := r.resolveOne(batchCtx, cid, u)
		if !ok {
			continue
		}
		r.metrics.record(strategy)
		resolved = append(resolved, Resolved{GoogleURL: u, PublisherURL: publisher, Strategy: strategy})
	}

	if len(urls) > 0 {
		rate := float64(len(resolved)) / float64(len(urls))
		if rate < 0.2 {
			r.logger.Error().
				Str("correlation_id", cid).
				Float64("success_rate", rate).
				Int("resolved", len(resolved)).
				Int("total", len(urls)).
				Msg("URL resolution success rate below 20%")
		} else {
			r.logger.Info().
				Str("correlation_id", cid).
				Float64("success_rate", rate).
				Int("resolved", len(resolved)).
				Msg("URL resolution batch completed")
		}
	}

	return resolved
}

func (r *Resolver) resolveOne(ctx context.Context, cid, googleURL string) (string, Strategy, bool) {
	urlCtx, cancel := context.WithTimeout(ctx, r.config.PerURLBudget)
	defer cancel()

	if publisher, ok := ExtractFromQuery(googleURL); ok {
		return publisher, StrategyQueryParam, true
	}

	if publisher, ok := r.chaseRedirects(urlCtx, googleURL); ok {
		return publisher, StrategyRedirectChase, true
	}

	if publisher, ok := DecodeArticleID(googleURL); ok {
		return publisher, StrategyBase64Decode, true
	}

	if r.browserEnabled {
		if publisher, ok := r.resolveWithBrowser(urlCtx, googleURL); ok {
			return publisher, StrategyBrowser, true
		}
	}

	r.logger.Debug().
		Str("correlation_id", cid).
		Str("url", googleURL).
		Msg("All resolution strategies failed")
	return "", "", false
}

// chaseRedirects issues HEAD requests following Location headers manually,
// stopping at the first non-Google host.
func (r *Resolver) chaseRedirects(ctx context.Context, start string) (string, bool) {
	current := start
	for hop := 0; hop < r.config.RedirectHops; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, current, nil)
		if err != nil {
			return "", false
		}
		httpclient.SetBrowserHeaders(req)

		resp, err := r.client.Do(req)
		if err != nil {
			return "", false
		}
		resp.Body.Close()

		if resp.StatusCode < 300 || resp.StatusCode >= 400 {
			return "", false
		}

		location := resp.Header.Get("Location")
		if location == "" {
			return "", false
		}

		next, err := resp.Request.URL.Parse(location)
		if err != nil {
			return "", false
		}

		if IsPublisherURL(next.String()) {
			return next.String(), true
		}
		current = next.String()
	}
	return "", false
}

// resolveWithBrowser navigates the URL in a headless tab and reads the final
// location after Google's JS redirect; failing that, it scans the rendered
// HTML for external URLs.
func (r *Resolver) resolveWithBrowser(ctx context.Context, googleURL string) (string, bool) {
	b, err := r.launcher.Launch(ctx, r.browserConfig)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Browser launch failed during resolution")
		return "", false
	}
	defer b.Close()

	tab, err := b.NewTab(ctx)
	if err != nil {
		return "", false
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, googleURL, r.browserConfig.Timeout); err != nil {
		return "", false
	}

	select {
	case <-ctx.Done():
		return "", false
	case <-time.After(r.browserConfig.RedirectSleep):
	}

	finalURL, err := tab.FinalURL(ctx)
	if err == nil && IsPublisherURL(finalURL) {
		return finalURL, true
	}

	html, err := tab.HTML(ctx)
	if err != nil {
		return "", false
	}
	return ScanHTMLForPublisherURL(html)
}

// IsPublisherURL reports whether a URL points somewhere other than Google and
// is a plausible article location.
func IsPublisherURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || isGoogleHost(host) {
		return false
	}
	return !hasAssetExtension(u.Path)
}

func isGoogleHost(host string) bool {
	return host == "google.com" ||
		strings.HasSuffix(host, ".google.com") ||
		host == "goo.gl" ||
		strings.HasSuffix(host, ".gstatic.com") ||
		strings.HasSuffix(host, ".googleusercontent.com")
}

var assetExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico",
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot",
	".pdf", ".zip", ".exe", ".dmg",
}

func hasAssetExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
