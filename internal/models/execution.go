package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Execution modes reported by the workflow engine
const (
	ExecutionModeWebhook = "webhook"
	ExecutionModeError   = "error"
)

// ExecutionID is a numeric execution id. The engine's API sends it as a JSON
// string, older versions as a number; both decode.
type ExecutionID int64

// UnmarshalJSON accepts "123" and 123
func (id *ExecutionID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid execution id %s: %w", data, err)
	}
	*id = ExecutionID(n)
	return nil
}

// String returns the decimal form used in API paths
func (id ExecutionID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Execution is one run record from the workflow engine's executions API
type Execution struct {
	ID         ExecutionID `json:"id"`
	Finished   bool        `json:"finished"`
	Mode       string      `json:"mode"`
	Status     string      `json:"status,omitempty"`
	WorkflowID string      `json:"workflowId,omitempty"`
	StartedAt  *time.Time  `json:"startedAt,omitempty"`
	StoppedAt  *time.Time  `json:"stoppedAt,omitempty"`
}

// Classify maps the execution onto a poll outcome.
// An error mode is terminal whether or not the run is marked finished.
func (e *Execution) Classify() PollOutcome {
	switch {
	case e.Mode == ExecutionModeError:
		return PollFailed
	case e.Finished && e.Mode == ExecutionModeWebhook:
		return PollCompleted
	default:
		return PollPending
	}
}

// executionList is the envelope of the list endpoint
type executionList struct {
	Data []Execution `json:"data"`
}

// DecodeExecutionList decodes a list response, accepting both the
// {"data":[...]} envelope and a bare array.
func DecodeExecutionList(body []byte) ([]Execution, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Execution
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var envelope executionList
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}
