package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/harmonia/internal/models"
)

var (
	// ErrDocumentNotFound is returned when a lookup by id matches nothing
	ErrDocumentNotFound = errors.New("document not found")

	// ErrSessionNotFound is returned when a session id is unknown or expired
	ErrSessionNotFound = errors.New("session not found")
)

// UpdateResult mirrors the counts of a single-document update.
// Modified is zero when the stored value already equals the new value.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// DocumentStore is typed access to the SchemaDocuments and KeyMapDocuments
// collections the workflow engine writes to.
type DocumentStore interface {
	// ListSchemaVersions returns every schema version string, sorted ascending
	ListSchemaVersions(ctx context.Context) ([]string, error)

	// FindCompletion returns the documents that signal a finished run for
	// targetVersion: error variants below stage "3", or the stage "3" target.
	FindCompletion(ctx context.Context, targetVersion string) ([]*models.SchemaDocument, error)

	FindSchemaByVersion(ctx context.Context, version string) ([]*models.SchemaDocument, error)
	GetSchema(ctx context.Context, id string) (*models.SchemaDocument, error)
	SaveSchema(ctx context.Context, doc *models.SchemaDocument) error

	// UpdateSchemaFields replaces the field list of one schema document
	UpdateSchemaFields(ctx context.Context, id string, fields []models.FieldDefinition) (UpdateResult, error)

	FindKeyMapsByProvider(ctx context.Context, provider string) ([]*models.KeyMapDocument, error)
	SaveKeyMap(ctx context.Context, doc *models.KeyMapDocument) error

	// UpdateKeyMap replaces the provider-keyed mapping of one keymap document
	UpdateKeyMap(ctx context.Context, id string, provider string, entries []models.KeyMapEntry) (UpdateResult, error)
}

// SessionStorage persists operator sessions
type SessionStorage interface {
	SaveSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	// DeleteSessionsBefore removes sessions last updated before cutoff
	DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	DocumentStore() DocumentStore
	SessionStorage() SessionStorage
	Close() error
}
