package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/interfaces"
	"github.com/ternarybob/herald/internal/models"
)

// ArticleStorage implements the ArticleStorage interface for Badger.
type ArticleStorage struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewArticleStorage creates a new ArticleStorage instance.
func NewArticleStorage(store *badgerhold.Store, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		store:  store,
		logger: logger,
	}
}

func (s *ArticleStorage) GetByURLHash(ctx context.Context, hash string) (*models.Article, error) {
	var articles []models.Article
	if err := s.store.Find(&articles, badgerhold.Where("URLHash").Eq(hash).Limit(1)); err != nil {
		return nil, errs.DatabaseConnection(err)
	}
	if len(articles) == 0 {
		return nil, nil
	}
	return &articles[0], nil
}

func (s *ArticleStorage) Insert(ctx context.Context, article *models.Article) (*models.Article, error) {
	if article.ID == "" {
		return nil, fmt.Errorf("article ID is required")
	}
	if article.Title == "" {
		return nil, fmt.Errorf("article title is required")
	}

	if err := s.store.Insert(article.ID, article); err != nil {
		if err == badgerhold.ErrUniqueExists {
			return nil, fmt.Errorf("article with url_hash %s already exists", article.URLHash)
		}
		return nil, errs.DatabaseConnection(err)
	}
	return article, nil
}

func (s *ArticleStorage) UpdateLastSeen(ctx context.Context, articleID string) error {
	var article models.Article
	if err := s.store.Get(articleID, &article); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("article not found: %s", articleID)
		}
		return errs.DatabaseConnection(err)
	}

	article.Touch(time.Now())
	if err := s.store.Update(articleID, &article); err != nil {
		return errs.DatabaseConnection(err)
	}
	return nil
}

func (s *ArticleStorage) EnsureCategoryAssociation(ctx context.Context, articleID, categoryID string, relevance float64, keywordMatched, query string) error {
	id := models.AssociationID(articleID, categoryID)
	now := time.Now()

	var existing models.ArticleCategory
	err := s.store.Get(id, &existing)
	switch err {
	case nil:
		existing.RelevanceScore = relevance
		if keywordMatched != "" {
			existing.KeywordMatched = keywordMatched
		}
		if query != "" {
			existing.SearchQueryUsed = query
		}
		existing.UpdatedAt = now
		if err := s.store.Update(id, &existing); err != nil {
			return errs.DatabaseConnection(err)
		}
		return nil
	case badgerhold.ErrNotFound:
		assoc := models.ArticleCategory{
			ID:              id,
			ArticleID:       articleID,
			CategoryID:      categoryID,
			RelevanceScore:  relevance,
			KeywordMatched:  keywordMatched,
			SearchQueryUsed: query,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.store.Insert(id, &assoc); err != nil {
			return errs.DatabaseConnection(err)
		}
		return nil
	default:
		return errs.DatabaseConnection(err)
	}
}

// BulkUpsertWithDedup applies dedup-and-save semantics per article. New
// articles are inserted together with their association in one Badger
// transaction so a crash cannot leave an article without its category link.
func (s *ArticleStorage) BulkUpsertWithDedup(ctx context.Context, articles []*models.Article, categoryID, keywordMatched, query string) (models.SaveCounts, error) {
	var counts models.SaveCounts
	now := time.Now()

	for _, article := range articles {
		if article == nil || article.Title == "" || article.SourceURL == "" {
			counts.Skipped++
			continue
		}
		if article.URLHash == "" {
			article.URLHash = models.HashURL(article.SourceURL)
		}

		existing, err := s.GetByURLHash(ctx, article.URLHash)
		if err != nil {
			return counts, err
		}

		if existing != nil {
			existing.Touch(now)
			if err := s.store.Update(existing.ID, existing); err != nil {
				return counts, errs.DatabaseConnection(err)
			}
			if err := s.EnsureCategoryAssociation(ctx, existing.ID, categoryID, article.RelevanceScore, keywordMatched, query); err != nil {
				return counts, err
			}
			counts.Updated++
			continue
		}

		if article.FirstSeen.IsZero() {
			article.FirstSeen = now
		}
		article.Touch(now)

		assoc := models.ArticleCategory{
			ID:              models.AssociationID(article.ID, categoryID),
			ArticleID:       article.ID,
			CategoryID:      categoryID,
			RelevanceScore:  article.RelevanceScore,
			KeywordMatched:  keywordMatched,
			SearchQueryUsed: query,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err = s.store.Badger().Update(func(tx *badgerdb.Txn) error {
			if err := s.store.TxInsert(tx, article.ID, article); err != nil {
				return err
			}
			return s.store.TxInsert(tx, assoc.ID, &assoc)
		})
		if err != nil {
			if err == badgerhold.ErrUniqueExists {
				// Lost a race to another writer; count as a refresh.
				counts.Updated++
				continue
			}
			return counts, errs.DatabaseConnection(err)
		}
		counts.New++
	}

	s.logger.Debug().
		Str("category_id", categoryID).
		Int("new", counts.New).
		Int("updated", counts.Updated).
		Int("skipped", counts.Skipped).
		Msg("Bulk upsert completed")

	return counts, nil
}

func (s *ArticleStorage) Count(ctx context.Context) (int, error) {
	count, err := s.store.Count(&models.Article{}, nil)
	if err != nil {
		return 0, errs.DatabaseConnection(err)
	}
	return int(count), nil
}

func (s *ArticleStorage) GetAssociations(ctx context.Context, articleID string) ([]*models.ArticleCategory, error) {
	var assocs []models.ArticleCategory
	if err := s.store.Find(&assocs, badgerhold.Where("ArticleID").Eq(articleID)); err != nil {
		return nil, errs.DatabaseConnection(err)
	}
	out := make([]*models.ArticleCategory, len(assocs))
	for i := range assocs {
		out[i] = &assocs[i]
	}
	return out, nil
}
