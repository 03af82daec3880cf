package harmonization

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

// scriptedStore answers FindCompletion from a list of responses, one per call.
// The last response repeats once the script is exhausted.
type scriptedStore struct {
	interfaces.DocumentStore

	mu        sync.Mutex
	responses []completionResponse
	calls     int
}

type completionResponse struct {
	docs []*models.SchemaDocument
	err  error
}

func (s *scriptedStore) FindCompletion(ctx context.Context, target string) ([]*models.SchemaDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	if i < 0 {
		return nil, nil
	}
	return s.responses[i].docs, s.responses[i].err
}

func (s *scriptedStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeClient is an in-process workflow engine
type fakeClient struct {
	mu sync.Mutex

	receipt     *interfaces.DispatchReceipt
	dispatchErr error
	dispatched  []*models.HarmonizationRequest

	latest     *models.Execution
	executions []*models.Execution // returned in order by GetExecution
	requested  []models.ExecutionID

	finalData    json.RawMessage
	finalErr     error
	finalPayload map[string]interface{}
}

func (c *fakeClient) Dispatch(ctx context.Context, req *models.HarmonizationRequest) (*interfaces.DispatchReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatched = append(c.dispatched, req)
	if c.dispatchErr != nil {
		return nil, c.dispatchErr
	}
	if c.receipt != nil {
		return c.receipt, nil
	}
	return &interfaces.DispatchReceipt{StatusCode: 200}, nil
}

func (c *fakeClient) LatestExecution(ctx context.Context, workflowID string) (*models.Execution, error) {
	if c.latest == nil {
		return nil, errors.New("no executions")
	}
	return c.latest, nil
}

func (c *fakeClient) GetExecution(ctx context.Context, id models.ExecutionID) (*models.Execution, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = append(c.requested, id)
	if len(c.executions) == 0 {
		return nil, errors.New("execution not found")
	}
	exec := c.executions[0]
	if len(c.executions) > 1 {
		c.executions = c.executions[1:]
	}
	return exec, nil
}

func (c *fakeClient) RunFinal(ctx context.Context, payload map[string]interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalPayload = payload
	if c.finalErr != nil {
		return nil, c.finalErr
	}
	return c.finalData, nil
}

func (c *fakeClient) lastFinalPayload() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalPayload
}

func testRequest(gmk bool) *models.HarmonizationRequest {
	return &models.HarmonizationRequest{
		ProviderName:        "AcmeCo",
		DataDomain:          "customers",
		SourceSchemaVersion: "v1",
		TargetSchemaVersion: "v2",
		GenerateMissingKey:  gmk,
		FileName:            "input.json",
		File:                []byte(`[{"cust_id": "1", "nm": "Ada"}]`),
	}
}

func fastPoll() PollOptions {
	return PollOptions{Interval: 5 * time.Millisecond}
}
