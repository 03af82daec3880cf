package badger

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

func TestSessionStorage_SaveGetDelete(t *testing.T) {
	storage := NewSessionStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	session := models.NewSession(&models.HarmonizationRequest{ProviderName: "AcmeCo", TargetSchemaVersion: "v2"})
	session.Schema = []models.FieldDefinition{{Name: "amount", Constraints: map[string]interface{}{"min": float64(1)}}}
	session.InputPayload = json.RawMessage(`{"zeta":1,"alpha":12345678901234567891,"html":"a<b"}`)
	require.NoError(t, storage.SaveSession(ctx, session))

	got, err := storage.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "AcmeCo", got.ProviderName)
	assert.Equal(t, models.SessionDispatched, got.Status)
	assert.Equal(t, session.Schema, got.Schema)
	assert.Equal(t, string(session.InputPayload), string(got.InputPayload))

	require.NoError(t, storage.DeleteSession(ctx, session.ID))
	_, err = storage.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, interfaces.ErrSessionNotFound)

	assert.NoError(t, storage.DeleteSession(ctx, session.ID), "deleting twice is not an error")
}

func TestSessionStorage_DeleteSessionsBefore(t *testing.T) {
	storage := NewSessionStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	old := &models.Session{ID: "old", CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour)}
	fresh := &models.Session{ID: "fresh", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, storage.SaveSession(ctx, old))
	require.NoError(t, storage.SaveSession(ctx, fresh))

	deleted, err := storage.DeleteSessionsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	sessions, err := storage.ListSessions(ctx, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].ID)
}

func TestSessionStorage_ListNewestFirst(t *testing.T) {
	storage := NewSessionStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		ts := now.Add(time.Duration(i) * time.Minute)
		require.NoError(t, storage.SaveSession(ctx, &models.Session{ID: id, CreatedAt: ts, UpdatedAt: ts}))
	}

	sessions, err := storage.ListSessions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "c", sessions[0].ID)
	assert.Equal(t, "b", sessions[1].ID)
}
