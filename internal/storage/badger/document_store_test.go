package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestDocumentStore(t *testing.T) interfaces.DocumentStore {
	return NewDocumentStore(newTestDB(t), arbor.NewLogger())
}

func seedSchema(t *testing.T, store interfaces.DocumentStore, id, version string, status models.StatusFlow) {
	t.Helper()
	require.NoError(t, store.SaveSchema(context.Background(), &models.SchemaDocument{
		ID:            id,
		SchemaVersion: version,
		StatusFlow:    status,
		Schema:        []models.FieldDefinition{{Name: "field_" + id, Type: "string"}},
	}))
}

func documentIDs(docs []*models.SchemaDocument) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestFindCompletion_Predicate(t *testing.T) {
	store := newTestDocumentStore(t)
	ctx := context.Background()

	seedSchema(t, store, "live", "v2", "3")
	seedSchema(t, store, "err-2", "v2_err", "2")
	seedSchema(t, store, "err-10", "other_err", "10") // "10" < "3" as text
	seedSchema(t, store, "in-flight", "v2", "2")
	seedSchema(t, store, "other-live", "v1", "3")
	seedSchema(t, store, "err-final", "v3_err", "3")

	docs, err := store.FindCompletion(ctx, "v2")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"live", "err-2", "err-10"}, documentIDs(docs))
}

func TestFindCompletion_UnmarkedErrorVariantIsSkipped(t *testing.T) {
	store := newTestDocumentStore(t)
	ctx := context.Background()
	seedSchema(t, store, "err-unmarked", "v2_err", "")

	docs, err := store.FindCompletion(ctx, "v2")
	require.NoError(t, err)
	assert.Empty(t, docs)

	doc, err := store.GetSchema(ctx, "err-unmarked")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFlow(""), doc.StatusFlow, "stored without a marker")
}

func TestFindCompletion_NothingYet(t *testing.T) {
	store := newTestDocumentStore(t)
	seedSchema(t, store, "in-flight", "v2", "1")

	docs, err := store.FindCompletion(context.Background(), "v2")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListSchemaVersions_Sorted(t *testing.T) {
	store := newTestDocumentStore(t)
	seedSchema(t, store, "a", "v3", "3")
	seedSchema(t, store, "b", "v1", "3")
	seedSchema(t, store, "c", "v2_err", "2")

	versions, err := store.ListSchemaVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2_err", "v3"}, versions)
}

func TestUpdateSchemaFields_RoundTrip(t *testing.T) {
	store := newTestDocumentStore(t)
	ctx := context.Background()
	seedSchema(t, store, "doc-1", "v2", "3")

	edited := []models.FieldDefinition{
		{Name: "amount", Type: "number", Constraints: map[string]interface{}{"min": float64(0)}},
		{Name: "tags", Type: "array", ItemDefinition: map[string]interface{}{"type": "string"}, Extra: map[string]interface{}{"note": "free text"}},
	}

	result, err := store.UpdateSchemaFields(ctx, "doc-1", edited)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpdateResult{Matched: 1, Modified: 1}, result)

	doc, err := store.GetSchema(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, edited, doc.Schema)
	assert.Equal(t, models.StatusFlow("3"), doc.StatusFlow, "other attributes are untouched")

	result, err = store.UpdateSchemaFields(ctx, "doc-1", edited)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Modified, "identical value reports no modification")
}

func TestUpdateSchemaFields_UnknownID(t *testing.T) {
	store := newTestDocumentStore(t)

	result, err := store.UpdateSchemaFields(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, interfaces.UpdateResult{}, result)
}

func TestGetSchema_NotFound(t *testing.T) {
	store := newTestDocumentStore(t)

	_, err := store.GetSchema(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrDocumentNotFound)
}

func TestKeyMap_FindAndUpdate(t *testing.T) {
	store := newTestDocumentStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveKeyMap(ctx, &models.KeyMapDocument{
		ID:       "km-1",
		Provider: "AcmeCo",
		Entries:  []models.KeyMapEntry{{Source: "cust", Target: "customer"}},
	}))
	require.NoError(t, store.SaveKeyMap(ctx, &models.KeyMapDocument{ID: "km-2", Provider: "Other"}))

	docs, err := store.FindKeyMapsByProvider(ctx, "AcmeCo")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "km-1", docs[0].ID)

	same := []models.KeyMapEntry{{Source: "cust", Target: "customer"}}
	result, err := store.UpdateKeyMap(ctx, "km-1", "AcmeCo", same)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Modified)

	edited := []models.KeyMapEntry{{Source: "cust", Target: "client"}, {Source: "amt", Target: "amount"}}
	result, err = store.UpdateKeyMap(ctx, "km-1", "AcmeCo", edited)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Modified)

	docs, err = store.FindKeyMapsByProvider(ctx, "AcmeCo")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, edited, docs[0].Entries)

	none, err := store.FindKeyMapsByProvider(ctx, "Nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
