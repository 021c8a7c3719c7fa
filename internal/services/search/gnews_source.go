package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/httpclient"
	"github.com/ternarybob/herald/internal/interfaces"
)

const defaultEndpoint = "https://news.google.com/rss/search"

// GNewsSource implements the NewsSource capability against the Google News
// RSS search endpoint. Period tokens map to "when:" query operators; date
// ranges map to "after:"/"before:" operators.
type GNewsSource struct {
	endpoint string
	client   *http.Client
	logger   arbor.ILogger
}

func NewGNewsSource(endpoint string, logger arbor.ILogger) *GNewsSource {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &GNewsSource{
		endpoint: endpoint,
		client:   httpclient.NewDefaultClient(15 * time.Second),
		logger:   logger,
	}
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

func (s *GNewsSource) Search(ctx context.Context, req interfaces.SearchRequest) ([]string, error) {
	query := req.Query
	if req.Period != "" {
		query = fmt.Sprintf("%s when:%s", query, req.Period)
	} else if req.StartDate != nil && req.EndDate != nil {
		query = fmt.Sprintf("%s after:%s before:%s",
			query,
			req.StartDate.Format("2006-01-02"),
			// "before:" is exclusive; push it one day past the window end.
			req.EndDate.AddDate(0, 0, 1).Format("2006-01-02"))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", req.Language)
	params.Set("gl", req.Country)
	params.Set("ceid", fmt.Sprintf("%s:%s", req.Country, req.Language))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errs.Internal("failed to build search request: %v", err)
	}
	httpclient.SetBrowserHeaders(httpReq)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, errs.GoogleNewsUnavailable("search transport failure").WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errs.RateLimitExceeded(parseRetryAfter(resp))
	case resp.StatusCode >= 500:
		return nil, errs.GoogleNewsUnavailable("search returned status %d", resp.StatusCode).
			WithDetail("status_code", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, errs.Internal("search returned unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, errs.GoogleNewsUnavailable("failed to read search response").WithCause(err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, errs.Internal("failed to decode search feed: %v", err)
	}

	urls := make([]string, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if item.Link == "" {
			continue
		}
		urls = append(urls, item.Link)
		if req.MaxResults > 0 && len(urls) >= req.MaxResults {
			break
		}
	}

	s.logger.Debug().
		Str("query", query).
		Int("results", len(urls)).
		Msg("Google News search completed")

	return urls, nil
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			return d
		}
	}
	return time.Minute
}
