package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	documents interfaces.DocumentStore
	sessions  interfaces.SessionStorage
	logger    arbor.ILogger
}

// NewManager creates a Badger manager serving both documents and sessions
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		documents: NewDocumentStore(db, logger),
		sessions:  NewSessionStorage(db, logger),
		logger:    logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// DocumentStore returns the schema and keymap store
func (m *Manager) DocumentStore() interfaces.DocumentStore {
	return m.documents
}

// SessionStorage returns the session storage interface
func (m *Manager) SessionStorage() interfaces.SessionStorage {
	return m.sessions
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
