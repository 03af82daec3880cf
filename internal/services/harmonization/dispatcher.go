package harmonization

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

// Dispatcher submits harmonization requests to the trigger endpoint
type Dispatcher struct {
	client interfaces.WorkflowClient
	logger arbor.ILogger
}

// NewDispatcher creates a dispatcher over the workflow client
func NewDispatcher(client interfaces.WorkflowClient, logger arbor.ILogger) *Dispatcher {
	return &Dispatcher{client: client, logger: logger}
}

// Dispatch validates req and posts it once. The engine's run is not awaited.
func (d *Dispatcher) Dispatch(ctx context.Context, req *models.HarmonizationRequest) (*interfaces.DispatchReceipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	receipt, err := d.client.Dispatch(ctx, req)
	if err != nil {
		d.logger.Error().
			Err(err).
			Str("provider", req.ProviderName).
			Str("target", req.TargetSchemaVersion).
			Msg("Workflow dispatch failed")
		return nil, fmt.Errorf("failed to call workflow: %w", err)
	}

	d.logger.Info().
		Str("provider", req.ProviderName).
		Str("source", req.SourceSchemaVersion).
		Str("target", req.TargetSchemaVersion).
		Bool("generate_missing_key", req.GenerateMissingKey).
		Int("status", receipt.StatusCode).
		Int64("execution_id", int64(receipt.ExecutionID)).
		Str("duration", time.Since(start).String()).
		Msg("Workflow dispatched")

	return receipt, nil
}
