package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article represents a single extracted news article. Articles are unique on
// URLHash; a re-encountered URL updates LastSeen instead of inserting a new row.
type Article struct {
	ID              string     `json:"id" badgerhold:"key"`
	Title           string     `json:"title"`
	Content         string     `json:"content,omitempty"`
	Author          string     `json:"author,omitempty"`
	PublishDate     *time.Time `json:"publish_date,omitempty"`
	SourceURL       string     `json:"source_url"`
	ImageURL        string     `json:"image_url,omitempty"`
	URLHash         string     `json:"url_hash" badgerhold:"unique"`
	ContentHash     string     `json:"content_hash,omitempty"`
	FirstSeen       time.Time  `json:"first_seen"`
	LastSeen        time.Time  `json:"last_seen"`
	KeywordsMatched []string   `json:"keywords_matched,omitempty"`
	RelevanceScore  float64    `json:"relevance_score"`
	ExtractedAt     time.Time  `json:"extracted_at"`

	// Extraction annotations for the batched Google News path.
	ExtractionMethod   string `json:"extraction_method,omitempty"`
	GoogleNewsURL      string `json:"google_news_url,omitempty"`
	FinalRedirectedURL string `json:"final_redirected_url,omitempty"`
}

// MaxTitleLength is the persisted title cap.
const MaxTitleLength = 500

// HashURL returns the SHA-256 hex digest used for URL dedup.
func HashURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// HashContent returns the SHA-256 hex digest of article content, or "" for
// empty content.
func HashContent(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Touch updates LastSeen, keeping it monotonically non-decreasing.
func (a *Article) Touch(now time.Time) {
	if now.After(a.LastSeen) {
		a.LastSeen = now
	}
}

// ArticleCategory is the many-to-many association between an article and a
// category, created idempotently on save.
type ArticleCategory struct {
	ID              string    `json:"id" badgerhold:"key"` // "<article_id>:<category_id>"
	ArticleID       string    `json:"article_id" badgerhold:"index"`
	CategoryID      string    `json:"category_id" badgerhold:"index"`
	RelevanceScore  float64   `json:"relevance_score"`
	KeywordMatched  string    `json:"keyword_matched,omitempty"`
	SearchQueryUsed string    `json:"search_query_used,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AssociationID builds the deterministic key that makes EnsureCategoryAssociation idempotent.
func AssociationID(articleID, categoryID string) string {
	return articleID + ":" + categoryID
}

// SaveCounts reports the outcome of a dedup-and-save batch.
type SaveCounts struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
