package common

import (
	"github.com/google/uuid"
)

// NewArticleID generates a unique article ID.
// Format: art_<uuid>
func NewArticleID() string {
	return "art_" + uuid.New().String()
}

// NewJobID generates a unique crawl job ID.
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewCategoryID generates a unique category ID.
// Format: cat_<uuid>
func NewCategoryID() string {
	return "cat_" + uuid.New().String()
}

// NewCorrelationID generates a correlation ID propagated through every
// pipeline step of a single crawl.
func NewCorrelationID() string {
	return uuid.New().String()
}
