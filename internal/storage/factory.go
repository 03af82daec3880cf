package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/storage/badger"
	"github.com/ternarybob/harmonia/internal/storage/mongo"
)

// manager pairs the document store backend with the local session store
type manager struct {
	documents interfaces.DocumentStore
	sessions  interfaces.SessionStorage
	closers   []func() error
}

func (m *manager) DocumentStore() interfaces.DocumentStore {
	return m.documents
}

func (m *manager) SessionStorage() interfaces.SessionStorage {
	return m.sessions
}

// Close closes every backend, the document store first
func (m *manager) Close() error {
	var errs []error
	for _, closeFn := range m.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewStorageManager creates a new storage manager based on config.
// Sessions always live in Badger; schemas and keymaps live in the configured backend.
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	local, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	switch config.Storage.Type {
	case common.StorageTypeBadger, "":
		return &manager{
			documents: local.DocumentStore(),
			sessions:  local.SessionStorage(),
			closers:   []func() error{local.Close},
		}, nil

	case common.StorageTypeMongo:
		remote, err := mongo.NewManager(ctx, logger, &config.Storage.Mongo)
		if err != nil {
			local.Close()
			return nil, err
		}
		return &manager{
			documents: remote.DocumentStore(),
			sessions:  local.SessionStorage(),
			closers:   []func() error{remote.Close, local.Close},
		}, nil

	default:
		local.Close()
		return nil, fmt.Errorf("unsupported storage type: %s (expected 'mongo' or 'badger')", config.Storage.Type)
	}
}
