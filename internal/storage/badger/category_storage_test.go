package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/models"
)

func testCategory(name string) *models.Category {
	return &models.Category{
		ID:                      common.NewCategoryID(),
		Name:                    name,
		Keywords:                []string{"bitcoin"},
		Language:                "vi",
		Country:                 "VN",
		IsActive:                true,
		ScheduleEnabled:         true,
		ScheduleIntervalMinutes: 60,
	}
}

func TestCategoryStorage_SaveAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	category := testCategory("crypto")
	require.NoError(t, m.Categories.Save(ctx, category))

	byID, err := m.Categories.GetByID(ctx, category.ID)
	require.NoError(t, err)
	assert.Equal(t, "crypto", byID.Name)

	byName, err := m.Categories.GetByName(ctx, "crypto")
	require.NoError(t, err)
	assert.Equal(t, category.ID, byName.ID)
}

func TestCategoryStorage_GetMissing(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Categories.GetByID(ctx, "cat_nope")
	require.Error(t, err)
	assert.Equal(t, errs.KindCategoryNotFound, errs.KindOf(err))

	_, err = m.Categories.GetByName(ctx, "nope")
	require.Error(t, err)
	assert.Equal(t, errs.KindCategoryNotFound, errs.KindOf(err))
}

func TestCategoryStorage_SaveValidates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*models.Category)
	}{
		{"empty name", func(c *models.Category) { c.Name = "" }},
		{"no keywords", func(c *models.Category) { c.Keywords = nil }},
		{"bad interval", func(c *models.Category) { c.ScheduleIntervalMinutes = 7 }},
		{"bad period", func(c *models.Category) { c.CrawlPeriod = "3w" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category := testCategory("valid-" + tt.name)
			tt.mutate(category)
			err := m.Categories.Save(ctx, category)
			require.Error(t, err)
			assert.Equal(t, errs.KindCategoryInvalid, errs.KindOf(err))
		})
	}
}

func TestCategoryStorage_ListSchedulable(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	now := time.Now()

	due := testCategory("due")
	past := now.Add(-time.Minute)
	due.NextScheduledRunAt = &past
	require.NoError(t, m.Categories.Save(ctx, due))

	notYet := testCategory("not-yet")
	future := now.Add(time.Hour)
	notYet.NextScheduledRunAt = &future
	require.NoError(t, m.Categories.Save(ctx, notYet))

	inactive := testCategory("inactive")
	inactive.IsActive = false
	require.NoError(t, m.Categories.Save(ctx, inactive))

	unscheduled := testCategory("unscheduled")
	unscheduled.ScheduleEnabled = false
	unscheduled.ScheduleIntervalMinutes = 0
	require.NoError(t, m.Categories.Save(ctx, unscheduled))

	disabled := testCategory("disabled")
	until := now.Add(time.Hour)
	disabled.DisabledUntil = &until
	require.NoError(t, m.Categories.Save(ctx, disabled))

	neverRun := testCategory("never-run")
	require.NoError(t, m.Categories.Save(ctx, neverRun))

	schedulable, err := m.Categories.ListSchedulable(ctx, now)
	require.NoError(t, err)

	names := make([]string, 0, len(schedulable))
	for _, c := range schedulable {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"due", "never-run"}, names)
}

func TestCategoryStorage_DisableTemporarily(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	category := testCategory("flaky")
	require.NoError(t, m.Categories.Save(ctx, category))

	until := time.Now().Add(24 * time.Hour)
	require.NoError(t, m.Categories.DisableTemporarily(ctx, category.ID, "too many failures", until))

	got, err := m.Categories.GetByID(ctx, category.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DisabledUntil)
	assert.True(t, got.IsDisabled(time.Now()))
	assert.False(t, got.IsDisabled(until.Add(time.Minute)))
}

func TestCategoryStorage_UpdateScheduleTimes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	category := testCategory("scheduled")
	require.NoError(t, m.Categories.Save(ctx, category))

	last := time.Now()
	next := last.Add(time.Hour)
	require.NoError(t, m.Categories.UpdateScheduleTimes(ctx, category.ID, last, next))

	got, err := m.Categories.GetByID(ctx, category.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastScheduledRunAt)
	require.NotNil(t, got.NextScheduledRunAt)
	assert.False(t, got.IsDue(last.Add(time.Minute)))
	assert.True(t, got.IsDue(next.Add(time.Minute)))
}
