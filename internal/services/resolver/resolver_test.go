package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/herald/internal/common"
)

func testResolverConfig() common.ResolverConfig {
	return common.ResolverConfig{
		MaxURLsPerBatch:    15,
		BatchBudget:        75 * time.Second,
		PerURLBudget:       5 * time.Second,
		RedirectHops:       3,
		RedirectHopTimeout: 3 * time.Second,
	}
}

func newTestResolver(cfg common.ResolverConfig) *Resolver {
	return New(cfg, common.BrowserConfig{Enabled: false}, nil, common.GetLogger())
}

func TestResolveBatch_QueryParamNeedsNoNetwork(t *testing.T) {
	r := newTestResolver(testResolverConfig())

	resolved := r.ResolveBatch(context.Background(), "cid", []string{
		"https://news.google.com/x?url=https%3A//example.com/a",
	})

	require.Len(t, resolved, 1)
	assert.Equal(t, "https://example.com/a", resolved[0].PublisherURL)
	assert.Equal(t, StrategyQueryParam, resolved[0].Strategy)
}

func TestResolveBatch_RedirectChase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		http.Redirect(w, r, "https://publisher.example/story", http.StatusFound)
	}))
	defer server.Close()

	r := newTestResolver(testResolverConfig())
	resolved := r.ResolveBatch(context.Background(), "cid", []string{server.URL + "/redirect"})

	require.Len(t, resolved, 1)
	assert.Equal(t, "https://publisher.example/story", resolved[0].PublisherURL)
	assert.Equal(t, StrategyRedirectChase, resolved[0].Strategy)
}

func TestResolveBatch_RelativeLocationResolved(t *testing.T) {
	hops := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops++
		if hops == 1 {
			w.Header().Set("Location", "/second")
			w.WriteHeader(http.StatusFound)
			return
		}
		w.Header().Set("Location", "https://publisher.example/final")
		w.WriteHeader(http.StatusFound)
	}))
	defer server.Close()

	r := newTestResolver(testResolverConfig())
	resolved := r.ResolveBatch(context.Background(), "cid", []string{server.URL + "/first"})

	// 127.0.0.1 is not a Google host, so the first hop already resolves.
	require.Len(t, resolved, 1)
	assert.Equal(t, server.URL+"/second", resolved[0].PublisherURL)
}

func TestResolveBatch_CapsURLCount(t *testing.T) {
	cfg := testResolverConfig()
	cfg.MaxURLsPerBatch = 2
	r := newTestResolver(cfg)

	urls := []string{
		"https://news.google.com/a?url=https%3A//example.com/1",
		"https://news.google.com/b?url=https%3A//example.com/2",
		"https://news.google.com/c?url=https%3A//example.com/3",
	}
	resolved := r.ResolveBatch(context.Background(), "cid", urls)

	assert.Len(t, resolved, 2)
}

func TestResolveBatch_LowSuccessRateStillReturnsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // no redirect, chase fails
	}))
	defer server.Close()

	r := newTestResolver(testResolverConfig())
	urls := []string{
		server.URL + "/a",
		server.URL + "/b",
		server.URL + "/c",
	}
	resolved := r.ResolveBatch(context.Background(), "cid", urls)

	assert.Empty(t, resolved)

	hits, ok, attempted := r.Metrics().Snapshot()
	assert.Empty(t, hits)
	assert.Zero(t, ok)
	assert.Equal(t, 3, attempted)
}

func TestResolveBatch_MetricsCountStrategies(t *testing.T) {
	r := newTestResolver(testResolverConfig())

	r.ResolveBatch(context.Background(), "cid", []string{
		"https://news.google.com/x?url=https%3A//example.com/a",
		"https://news.google.com/y?url=https%3A//example.com/b",
	})

	hits, resolved, attempted := r.Metrics().Snapshot()
	assert.Equal(t, 2, hits[StrategyQueryParam])
	assert.Equal(t, 2, resolved)
	assert.Equal(t, 2, attempted)
}

func TestResolveBatch_BudgetExhaustionStopsEarly(t *testing.T) {
	cfg := testResolverConfig()
	// A negative budget cancels the batch context immediately.
	cfg.BatchBudget = -time.Second
	r := newTestResolver(cfg)

	resolved := r.ResolveBatch(context.Background(), "cid", []string{
		"https://news.google.com/x?url=https%3A//example.com/a",
	})

	assert.Empty(t, resolved)
}
