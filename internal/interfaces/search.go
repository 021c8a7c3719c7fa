package interfaces

import (
	"context"
	"time"
)

// SearchRequest carries one Google News search call. Exactly one of Period or
// the StartDate/EndDate pair should be set; Period wins when both are present.
type SearchRequest struct {
	Query      string
	Language   string
	Country    string
	MaxResults int
	Period     string
	StartDate  *time.Time
	EndDate    *time.Time
}

// NewsSource is the Google-News-style search capability. Implementations
// return redirect URLs; resolving them to publisher URLs is the resolver's job.
type NewsSource interface {
	Search(ctx context.Context, req SearchRequest) ([]string, error)
}
