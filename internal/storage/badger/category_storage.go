package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// CategoryStorage implements the CategoryStorage interface for Badger.
type CategoryStorage struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewCategoryStorage creates a new CategoryStorage instance.
func NewCategoryStorage(store *badgerhold.Store, logger arbor.ILogger) interfaces.CategoryStorage {
	return &CategoryStorage{
		store:  store,
		logger: logger,
	}
}

func (s *CategoryStorage) Save(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		return fmt.Errorf("category ID is required")
	}
	if err := category.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if category.CreatedAt.IsZero() {
		category.CreatedAt = now
	}
	category.UpdatedAt = now

	if err := s.store.Upsert(category.ID, category); err != nil {
		return errs.DatabaseConnection(err)
	}
	return nil
}

func (s *CategoryStorage) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := s.store.Get(id, &category); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, errs.CategoryNotFound(id)
		}
		return nil, errs.DatabaseConnection(err)
	}
	return &category, nil
}

func (s *CategoryStorage) GetByName(ctx context.Context, name string) (*models.Category, error) {
	var categories []models.Category
	if err := s.store.Find(&categories, badgerhold.Where("Name").Eq(name).Limit(1)); err != nil {
		return nil, errs.DatabaseConnection(err)
	}
	if len(categories) == 0 {
		return nil, errs.CategoryNotFound(name)
	}
	return &categories[0], nil
}

func (s *CategoryStorage) List(ctx context.Context) ([]*models.Category, error) {
	var categories []models.Category
	if err := s.store.Find(&categories, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, errs.DatabaseConnection(err)
	}
	out := make([]*models.Category, len(categories))
	for i := range categories {
		out[i] = &categories[i]
	}
	return out, nil
}

// ListSchedulable filters in memory: the due check mixes nullable timestamps
// that badgerhold queries express poorly.
func (s *CategoryStorage) ListSchedulable(ctx context.Context, now time.Time) ([]*models.Category, error) {
	var categories []models.Category
	query := badgerhold.Where("ScheduleEnabled").Eq(true).And("IsActive").Eq(true)
	if err := s.store.Find(&categories, query); err != nil {
		return nil, errs.DatabaseConnection(err)
	}

	out := make([]*models.Category, 0, len(categories))
	for i := range categories {
		if categories[i].IsDue(now) {
			out = append(out, &categories[i])
		}
	}
	return out, nil
}

func (s *CategoryStorage) DisableTemporarily(ctx context.Context, id, reason string, until time.Time) error {
	category, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	category.DisabledUntil = &until
	category.UpdatedAt = time.Now()

	if err := s.store.Update(id, category); err != nil {
		return errs.DatabaseConnection(err)
	}

	s.logger.Warn().
		Str("category_id", id).
		Str("reason", reason).
		Str("disabled_until", until.Format(time.RFC3339)).
		Msg("Category temporarily disabled")

	return nil
}

func (s *CategoryStorage) UpdateScheduleTimes(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	category, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	category.LastScheduledRunAt = &lastRun
	category.NextScheduledRunAt = &nextRun
	category.UpdatedAt = time.Now()

	if err := s.store.Update(id, category); err != nil {
		return errs.DatabaseConnection(err)
	}
	return nil
}
