package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SessionStorage implements interfaces.SessionStorage for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SessionStorage) SaveSession(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStorage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Store().Get(id, &session); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// ListSessions returns the most recently updated sessions first
func (s *SessionStorage) ListSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("UpdatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []models.Session
	if err := s.db.Store().Find(&sessions, query); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	result := make([]*models.Session, len(sessions))
	for i := range sessions {
		result[i] = &sessions[i]
	}
	return result, nil
}

func (s *SessionStorage) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Session{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SessionStorage) DeleteSessionsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := badgerhold.Where("UpdatedAt").Lt(cutoff)

	count, err := s.db.Store().Count(&models.Session{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count expired sessions: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.Session{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	s.logger.Debug().Int("count", int(count)).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Expired sessions deleted")
	return int(count), nil
}
