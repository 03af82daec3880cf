package interfaces

import (
	"context"
	"encoding/json"

	"github.com/ternarybob/harmonia/internal/models"
)

// DispatchReceipt is what the trigger endpoint answered on acceptance
type DispatchReceipt struct {
	StatusCode  int
	Body        json.RawMessage    // Decoded only when the engine answers with JSON
	ExecutionID models.ExecutionID // Correlation token, zero when the engine returned none
}

// WorkflowClient talks to the external workflow engine
type WorkflowClient interface {
	// Dispatch submits the request to the trigger endpoint without waiting for the run
	Dispatch(ctx context.Context, req *models.HarmonizationRequest) (*DispatchReceipt, error)

	// LatestExecution returns the most recent execution of workflowID
	LatestExecution(ctx context.Context, workflowID string) (*models.Execution, error)

	GetExecution(ctx context.Context, id models.ExecutionID) (*models.Execution, error)

	// RunFinal posts payload to the final workflow and returns its output verbatim
	RunFinal(ctx context.Context, payload map[string]interface{}) (json.RawMessage, error)
}
