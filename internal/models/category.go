package models

import (
	"time"

	"github.com/ternarybob/herald/internal/errs"
)

// PeriodTokens is the closed set of Google News recency windows.
var PeriodTokens = map[string]bool{
	"1h": true, "2h": true, "6h": true, "12h": true,
	"1d": true, "2d": true, "7d": true,
	"1m": true, "3m": true, "6m": true, "1y": true,
}

// ScheduleIntervals is the allowed set of schedule granularities in minutes.
var ScheduleIntervals = map[int]bool{
	1: true, 5: true, 15: true, 30: true, 60: true, 1440: true,
}

// Category is a named bundle of keywords, excludes and locale that defines
// what to crawl.
type Category struct {
	ID                      string     `json:"id" badgerhold:"key"`
	Name                    string     `json:"name" badgerhold:"unique"`
	Keywords                []string   `json:"keywords"`
	ExcludeKeywords         []string   `json:"exclude_keywords,omitempty"`
	Language                string     `json:"language"`
	Country                 string     `json:"country"`
	IsActive                bool       `json:"is_active"`
	ScheduleEnabled         bool       `json:"schedule_enabled"`
	ScheduleIntervalMinutes int        `json:"schedule_interval_minutes,omitempty"`
	CrawlPeriod             string     `json:"crawl_period,omitempty"`
	LastScheduledRunAt      *time.Time `json:"last_scheduled_run_at,omitempty"`
	NextScheduledRunAt      *time.Time `json:"next_scheduled_run_at,omitempty"`
	DisabledUntil           *time.Time `json:"disabled_until,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// Validate enforces the category invariants.
func (c *Category) Validate() error {
	if c.Name == "" {
		return errs.CategoryInvalid("name is required")
	}
	if len(c.Keywords) == 0 {
		return errs.CategoryInvalid("at least one keyword is required")
	}
	if c.ScheduleEnabled && !ScheduleIntervals[c.ScheduleIntervalMinutes] {
		return errs.CategoryInvalid("schedule_interval_minutes must be one of 1, 5, 15, 30, 60, 1440")
	}
	if c.CrawlPeriod != "" && !PeriodTokens[c.CrawlPeriod] {
		return errs.CategoryInvalid("invalid crawl_period token: %s", c.CrawlPeriod)
	}
	return nil
}

// IsDisabled reports whether the category is temporarily disabled at the
// given instant.
func (c *Category) IsDisabled(now time.Time) bool {
	return c.DisabledUntil != nil && now.Before(*c.DisabledUntil)
}

// IsDue reports whether the scheduler should run this category now.
func (c *Category) IsDue(now time.Time) bool {
	if !c.ScheduleEnabled || !c.IsActive || c.IsDisabled(now) {
		return false
	}
	if c.NextScheduledRunAt == nil {
		return true
	}
	return !now.Before(*c.NextScheduledRunAt)
}

// ScheduleInterval returns the configured interval as a duration.
func (c *Category) ScheduleInterval() time.Duration {
	return time.Duration(c.ScheduleIntervalMinutes) * time.Minute
}
