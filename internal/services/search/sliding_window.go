package search

import (
	"context"
	"time"
)

// CrawlWithDailySlidingWindow splits a date range into day buckets and runs
// one search per bucket, spreading maxTotal results evenly. Buckets that fail
// are skipped with a warning so one bad day does not sink the whole range.
func (c *Client) CrawlWithDailySlidingWindow(ctx context.Context, cid string, keywords, excludes []string, maxTotal int, language, country string, start, end time.Time) ([]string, error) {
	if end.Before(start) {
		c.logger.Warn().
			Str("correlation_id", cid).
			Str("start", start.Format("2006-01-02")).
			Str("end", end.Format("2006-01-02")).
			Msg("Sliding window end precedes start, returning no results")
		return nil, nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	perBucket := maxTotal / days
	if perBucket < 1 {
		perBucket = 1
	}

	seen := make(map[string]bool)
	results := make([]string, 0, maxTotal)

	for i := 0; i < days; i++ {
		// Every bucket spans its full day, including the last one; Google's
		// date operators are day-granular so a partial final day still needs
		// the whole-day window.
		bucketStart := start.Add(time.Duration(i) * 24 * time.Hour)
		bucketEnd := bucketStart.Add(24*time.Hour - time.Second)

		urls, err := c.Search(ctx, cid, keywords, excludes, perBucket, language, country, "", &bucketStart, &bucketEnd)
		if err != nil {
			c.logger.Warn().
				Str("correlation_id", cid).
				Str("bucket_start", bucketStart.Format("2006-01-02")).
				Err(err).
				Msg("Sliding window bucket failed, continuing")
			continue
		}

		for _, u := range urls {
			if seen[u] {
				continue
			}
			seen[u] = true
			results = append(results, u)
		}
	}

	c.logger.Info().
		Str("correlation_id", cid).
		Int("days", days).
		Int("per_bucket", perBucket).
		Int("unique_results", len(results)).
		Msg("Sliding window crawl completed")

	return results, nil
}
