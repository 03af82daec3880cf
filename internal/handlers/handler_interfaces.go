package handlers

import (
	"context"

	"github.com/ternarybob/harmonia/internal/models"
	"github.com/ternarybob/harmonia/internal/services/harmonization"
)

// HarmonizationService is the session surface the HTTP handlers drive
type HarmonizationService interface {
	Submit(ctx context.Context, req *models.HarmonizationRequest) (*models.Session, error)
	Session(ctx context.Context, id string) (*models.Session, error)
	Sessions(ctx context.Context, limit int) ([]*models.Session, error)
	Cancel(ctx context.Context, id string) (*models.Session, error)
	SchemaVersions(ctx context.Context) ([]string, error)
	SaveEdits(ctx context.Context, id string, edits harmonization.Edits) (*harmonization.SaveResult, error)
	Download(ctx context.Context, id string) (string, []byte, error)
}
