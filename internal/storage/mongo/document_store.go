package mongo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocumentStore implements interfaces.DocumentStore on the collections the
// workflow engine writes to.
type DocumentStore struct {
	schemas *mongo.Collection
	keymaps *mongo.Collection
	logger  arbor.ILogger
}

// NewDocumentStore creates a store over the configured schema and keymap collections
func NewDocumentStore(client *Client, logger arbor.ILogger) *DocumentStore {
	return &DocumentStore{
		schemas: client.Collection(client.config.SchemaCollection),
		keymaps: client.Collection(client.config.KeyMapCollection),
		logger:  logger,
	}
}

func (s *DocumentStore) ListSchemaVersions(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{fieldSchemaVersion: 1, fieldID: 0})
	cursor, err := s.schemas.Find(ctx, bson.M{fieldSchemaVersion: bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema versions: %w", err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read schema versions: %w", err)
	}

	versions := make([]string, 0, len(raw))
	for _, doc := range raw {
		if v, ok := doc[fieldSchemaVersion].(string); ok {
			versions = append(versions, v)
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func (s *DocumentStore) FindCompletion(ctx context.Context, targetVersion string) ([]*models.SchemaDocument, error) {
	return s.findSchemas(ctx, completionFilter(targetVersion))
}

func (s *DocumentStore) FindSchemaByVersion(ctx context.Context, version string) ([]*models.SchemaDocument, error) {
	return s.findSchemas(ctx, bson.M{fieldSchemaVersion: version})
}

func (s *DocumentStore) findSchemas(ctx context.Context, filter bson.M) ([]*models.SchemaDocument, error) {
	cursor, err := s.schemas.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query schemas: %w", err)
	}

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read schemas: %w", err)
	}

	docs := make([]*models.SchemaDocument, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, schemaFromBSON(r))
	}
	return docs, nil
}

func (s *DocumentStore) GetSchema(ctx context.Context, id string) (*models.SchemaDocument, error) {
	var raw bson.M
	if err := s.schemas.FindOne(ctx, idFilter(id)).Decode(&raw); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: schema %s", interfaces.ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	return schemaFromBSON(raw), nil
}

func (s *DocumentStore) SaveSchema(ctx context.Context, doc *models.SchemaDocument) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if doc.ID == "" {
		res, err := s.schemas.InsertOne(ctx, schemaToBSON(doc))
		if err != nil {
			return fmt.Errorf("failed to insert schema: %w", err)
		}
		doc.ID = idString(res.InsertedID)
		return nil
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.schemas.ReplaceOne(ctx, idFilter(doc.ID), schemaToBSON(doc), opts); err != nil {
		return fmt.Errorf("failed to save schema: %w", err)
	}
	return nil
}

func (s *DocumentStore) UpdateSchemaFields(ctx context.Context, id string, fields []models.FieldDefinition) (interfaces.UpdateResult, error) {
	update := bson.M{"$set": bson.M{fieldSchema: fields}}

	res, err := s.schemas.UpdateOne(ctx, idFilter(id), update)
	if err != nil {
		return interfaces.UpdateResult{}, fmt.Errorf("failed to update schema %s: %w", id, err)
	}

	s.logger.Debug().
		Str("id", id).
		Int64("matched", res.MatchedCount).
		Int64("modified", res.ModifiedCount).
		Msg("Schema fields update applied")

	return interfaces.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (s *DocumentStore) FindKeyMapsByProvider(ctx context.Context, provider string) ([]*models.KeyMapDocument, error) {
	cursor, err := s.keymaps.Find(ctx, bson.M{provider: bson.M{"$exists": true}})
	if err != nil {
		return nil, fmt.Errorf("failed to find keymaps for %s: %w", provider, err)
	}

	var raw []bson.D
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read keymaps: %w", err)
	}

	docs := make([]*models.KeyMapDocument, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, keymapFromBSON(r, provider))
	}
	return docs, nil
}

func (s *DocumentStore) SaveKeyMap(ctx context.Context, doc *models.KeyMapDocument) error {
	doc.UpdatedAt = time.Now().UTC()
	body := bson.D{
		{Key: doc.Provider, Value: entriesToBSON(doc.Entries)},
		{Key: fieldUpdatedAt, Value: doc.UpdatedAt},
	}

	if doc.ID == "" {
		oid := primitive.NewObjectID()
		body = append(bson.D{{Key: fieldID, Value: oid}}, body...)
		if _, err := s.keymaps.InsertOne(ctx, body); err != nil {
			return fmt.Errorf("failed to insert keymap: %w", err)
		}
		doc.ID = oid.Hex()
		return nil
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.keymaps.UpdateOne(ctx, idFilter(doc.ID), bson.M{"$set": body}, opts); err != nil {
		return fmt.Errorf("failed to save keymap: %w", err)
	}
	return nil
}

func (s *DocumentStore) UpdateKeyMap(ctx context.Context, id string, provider string, entries []models.KeyMapEntry) (interfaces.UpdateResult, error) {
	update := bson.M{"$set": bson.M{provider: entriesToBSON(entries)}}

	res, err := s.keymaps.UpdateOne(ctx, idFilter(id), update)
	if err != nil {
		return interfaces.UpdateResult{}, fmt.Errorf("failed to update keymap %s: %w", id, err)
	}

	s.logger.Debug().
		Str("id", id).
		Str("provider", provider).
		Int64("matched", res.MatchedCount).
		Int64("modified", res.ModifiedCount).
		Msg("Keymap update applied")

	return interfaces.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}
