package mongo

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
)

// Manager owns the MongoDB connection and the document store built on it
type Manager struct {
	client    *Client
	documents *DocumentStore
	logger    arbor.ILogger
}

// NewManager connects to MongoDB and prepares the document store
func NewManager(ctx context.Context, logger arbor.ILogger, config *common.MongoConfig) (*Manager, error) {
	client, err := NewClient(ctx, logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		client:    client,
		documents: NewDocumentStore(client, logger),
		logger:    logger,
	}, nil
}

// DocumentStore returns the schema and keymap store
func (m *Manager) DocumentStore() interfaces.DocumentStore {
	return m.documents
}

// Close disconnects from MongoDB
func (m *Manager) Close() error {
	return m.client.Close()
}
