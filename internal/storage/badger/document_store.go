package badger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

var errorVersionPattern = regexp.MustCompile(regexp.QuoteMeta(models.ErrorVersionSuffix) + "$")

// DocumentStore implements interfaces.DocumentStore on badgerhold.
// It serves local runs and tests; in production the engine writes to mongo.
type DocumentStore struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStore creates a new DocumentStore instance
func NewDocumentStore(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStore {
	return &DocumentStore{
		db:     db,
		logger: logger,
	}
}

// completionQuery selects error variants below stage "3" or the stage "3"
// document of the target version. Stages compare as text. An empty marker is
// not encoded, so it reads the same as a missing one and is never selected.
func completionQuery(targetVersion string) *badgerhold.Query {
	errorVariants := badgerhold.Where("StatusFlow").Lt(models.StatusFlowComplete).
		And("StatusFlow").Ne(models.StatusFlow("")).
		And("SchemaVersion").RegExp(errorVersionPattern)

	live := badgerhold.Where("StatusFlow").Eq(models.StatusFlowComplete).
		And("SchemaVersion").Eq(targetVersion)

	return errorVariants.Or(live)
}

func (s *DocumentStore) ListSchemaVersions(ctx context.Context) ([]string, error) {
	var docs []models.SchemaDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("SchemaVersion").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list schema versions: %w", err)
	}

	versions := make([]string, 0, len(docs))
	for _, doc := range docs {
		versions = append(versions, doc.SchemaVersion)
	}
	sort.Strings(versions)
	return versions, nil
}

func (s *DocumentStore) FindCompletion(ctx context.Context, targetVersion string) ([]*models.SchemaDocument, error) {
	var docs []models.SchemaDocument
	if err := s.db.Store().Find(&docs, completionQuery(targetVersion)); err != nil {
		return nil, fmt.Errorf("failed to query completion documents: %w", err)
	}
	return toSchemaPointers(docs), nil
}

func (s *DocumentStore) FindSchemaByVersion(ctx context.Context, version string) ([]*models.SchemaDocument, error) {
	var docs []models.SchemaDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("SchemaVersion").Eq(version)); err != nil {
		return nil, fmt.Errorf("failed to find schema %s: %w", version, err)
	}
	return toSchemaPointers(docs), nil
}

func (s *DocumentStore) GetSchema(ctx context.Context, id string) (*models.SchemaDocument, error) {
	var doc models.SchemaDocument
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: schema %s", interfaces.ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) SaveSchema(ctx context.Context, doc *models.SchemaDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	return nil
}

func (s *DocumentStore) UpdateSchemaFields(ctx context.Context, id string, fields []models.FieldDefinition) (interfaces.UpdateResult, error) {
	var doc models.SchemaDocument
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.UpdateResult{}, nil
		}
		return interfaces.UpdateResult{}, fmt.Errorf("failed to load schema %s: %w", id, err)
	}

	result := interfaces.UpdateResult{Matched: 1}
	same, err := sameJSON(doc.Schema, fields)
	if err != nil {
		return result, err
	}
	if same {
		return result, nil
	}

	doc.Schema = fields
	doc.UpdatedAt = time.Now()
	if err := s.db.Store().Update(id, &doc); err != nil {
		return result, fmt.Errorf("failed to update schema %s: %w", id, err)
	}

	result.Modified = 1
	s.logger.Debug().Str("id", id).Int("fields", len(fields)).Msg("Schema fields updated")
	return result, nil
}

func (s *DocumentStore) FindKeyMapsByProvider(ctx context.Context, provider string) ([]*models.KeyMapDocument, error) {
	var docs []models.KeyMapDocument
	if err := s.db.Store().Find(&docs, badgerhold.Where("Provider").Eq(provider)); err != nil {
		return nil, fmt.Errorf("failed to find keymaps for %s: %w", provider, err)
	}

	result := make([]*models.KeyMapDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStore) SaveKeyMap(ctx context.Context, doc *models.KeyMapDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.Entries = models.NormalizeEntries(doc.Entries)
	doc.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save keymap: %w", err)
	}
	return nil
}

func (s *DocumentStore) UpdateKeyMap(ctx context.Context, id string, provider string, entries []models.KeyMapEntry) (interfaces.UpdateResult, error) {
	var doc models.KeyMapDocument
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return interfaces.UpdateResult{}, nil
		}
		return interfaces.UpdateResult{}, fmt.Errorf("failed to load keymap %s: %w", id, err)
	}

	result := interfaces.UpdateResult{Matched: 1}
	entries = models.NormalizeEntries(entries)
	if doc.Provider == provider && models.EntriesEqual(doc.Entries, entries) {
		return result, nil
	}

	doc.Provider = provider
	doc.Entries = entries
	doc.UpdatedAt = time.Now()
	if err := s.db.Store().Update(id, &doc); err != nil {
		return result, fmt.Errorf("failed to update keymap %s: %w", id, err)
	}

	result.Modified = 1
	s.logger.Debug().Str("id", id).Str("provider", provider).Int("entries", len(entries)).Msg("Keymap updated")
	return result, nil
}

func toSchemaPointers(docs []models.SchemaDocument) []*models.SchemaDocument {
	result := make([]*models.SchemaDocument, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result
}

// sameJSON reports whether a and b encode to the same JSON
func sameJSON(a, b interface{}) (bool, error) {
	left, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to encode stored value: %w", err)
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("failed to encode new value: %w", err)
	}
	return bytes.Equal(left, right), nil
}
