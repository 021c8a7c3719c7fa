package search

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/reliability"
)

// BreakerName is the circuit breaker protecting Google News search calls.
const BreakerName = "google_news_search"

// Client builds queries and runs Google News searches through the
// reliability substrate. Results are redirect URLs; resolution is the
// resolver's job.
type Client struct {
	source   interfaces.NewsSource
	retrier  *reliability.Retrier
	breakers *reliability.BreakerManager
	config   common.SearchConfig
	logger   arbor.ILogger
}

func NewClient(source interfaces.NewsSource, retrier *reliability.Retrier, breakers *reliability.BreakerManager, config common.SearchConfig, logger arbor.ILogger) *Client {
	return &Client{
		source:   source,
		retrier:  retrier,
		breakers: breakers,
		config:   config,
		logger:   logger,
	}
}

// Search runs one query. Exactly one of period or (startDate, endDate) should
// be supplied; when both are present the period wins and a warning is logged.
func (c *Client) Search(ctx context.Context, cid string, keywords, excludes []string, maxResults int, language, country, period string, startDate, endDate *time.Time) ([]string, error) {
	query := BuildAdvanced(keywords, excludes)
	if query == "" {
		c.logger.Warn().
			Str("correlation_id", cid).
			Msg("No keywords survived sanitization, skipping search")
		return nil, nil
	}

	if period != "" && (startDate != nil || endDate != nil) {
		c.logger.Warn().
			Str("correlation_id", cid).
			Str("period", period).
			Msg("Both period and date range supplied; period wins")
		startDate, endDate = nil, nil
	}
	if period != "" && !validPeriod(period) {
		return nil, errs.Validation("invalid period token: %s", period)
	}

	if maxResults <= 0 || maxResults > c.config.MaxResultsPerSearch {
		maxResults = c.config.MaxResultsPerSearch
	}
	if language == "" {
		language = c.config.DefaultLanguage
	}
	if country == "" {
		country = c.config.DefaultCountry
	}

	req := interfaces.SearchRequest{
		Query:      query,
		Language:   language,
		Country:    country,
		MaxResults: maxResults,
		Period:     period,
		StartDate:  startDate,
		EndDate:    endDate,
	}

	var urls []string
	err := c.retrier.Run(ctx, reliability.ExternalServiceConfig(), cid, func(ctx context.Context) error {
		return c.breakers.CallWithBreaker(ctx, BreakerName, reliability.DefaultBreakerConfig(), cid, func(ctx context.Context) error {
			found, err := c.source.Search(ctx, req)
			if err != nil {
				return err
			}
			urls = found
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("correlation_id", cid).
		Str("query", query).
		Int("results", len(urls)).
		Msg("Search completed")

	return urls, nil
}

func validPeriod(period string) bool {
	switch period {
	case "1h", "2h", "6h", "12h", "1d", "2d", "7d", "1m", "3m", "6m", "1y":
		return true
	}
	return false
}
