package badger

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/errs"
	"github.com/ternarybob/herald/internal/interfaces"
)

// Manager owns the badgerhold store and the typed stores layered over it.
// Articles, categories and jobs share the one Badger instance; badgerhold
// namespaces keys by record type.
type Manager struct {
	store      *badgerhold.Store
	logger     arbor.ILogger
	Articles   interfaces.ArticleStorage
	Categories interfaces.CategoryStorage
	Jobs       interfaces.JobStorage
}

// NewManager opens the store and wires the typed stores over it.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	store, err := openStore(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		store:      store,
		logger:     logger,
		Articles:   NewArticleStorage(store, logger),
		Categories: NewCategoryStorage(store, logger),
		Jobs:       NewJobStorage(store, logger),
	}, nil
}

// openStore prepares the data directory and opens badgerhold. With
// reset_on_startup set, the directory is wiped first so every run begins
// from an empty store.
func openStore(logger arbor.ILogger, config *common.BadgerConfig) (*badgerhold.Store, error) {
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Resetting store on startup")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Could not remove store directory")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, errs.DatabaseConnection(err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // arbor carries the logs; badger's own logger stays off

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, errs.DatabaseConnection(err)
	}

	logger.Debug().Str("path", config.Path).Msg("Store opened")
	return store, nil
}

// Close closes the shared store.
func (m *Manager) Close() error {
	if m.store == nil {
		return nil
	}
	return m.store.Close()
}
