package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the lifecycle state of one operator session
type SessionStatus string

const (
	SessionDispatched     SessionStatus = "dispatched"
	SessionPolling        SessionStatus = "polling"
	SessionReady          SessionStatus = "ready"
	SessionReadyWithError SessionStatus = "ready_with_error"
	SessionFailed         SessionStatus = "failed"
	SessionCancelled      SessionStatus = "cancelled"
)

// IsTerminal reports whether no background work remains for the session
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionReady, SessionReadyWithError, SessionFailed, SessionCancelled:
		return true
	}
	return false
}

// IsEditable reports whether the operator may save edits
func (s SessionStatus) IsEditable() bool {
	return s == SessionReady || s == SessionReadyWithError
}

// Session is the operator's state for one harmonization run: what was
// submitted, what the engine produced, and the final output.
type Session struct {
	ID                  string        `json:"id"`
	Status              SessionStatus `json:"status" badgerhold:"index"`
	Message             string        `json:"message,omitempty"` // Operator-visible detail for the current status
	KeyMapMessage       string        `json:"keymap_message,omitempty"`
	ProviderName        string        `json:"provider_name"`
	DataDomain          string        `json:"data_domain"`
	SourceSchemaVersion string        `json:"source_schema_version"`
	TargetSchemaVersion string        `json:"target_schema_version"`
	GenerateMissingKey  bool          `json:"generate_missing_key"`
	FileName            string        `json:"file_name"`

	ExecutionID ExecutionID `json:"execution_id,omitempty"`
	Attempts    int         `json:"attempts"`

	DataID     string            `json:"data_id,omitempty"`   // Id of the schema document shown for editing
	KeyMapID   string            `json:"keymap_id,omitempty"` // Id of the provider's keymap document
	SchemaInfo *SchemaInfo       `json:"schema_info,omitempty"`
	KeyMap     []KeyMapEntry     `json:"keymap,omitempty"`
	Schema     []FieldDefinition `json:"schema,omitempty"`

	// InputPayload is the uploaded file as sent, kept only when it is valid JSON
	InputPayload json.RawMessage `json:"input_payload,omitempty"`
	Final        *FinalResult    `json:"final,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a dispatched session for a request
func NewSession(req *HarmonizationRequest) *Session {
	now := time.Now()
	return &Session{
		ID:                  uuid.New().String(),
		Status:              SessionDispatched,
		ProviderName:        req.ProviderName,
		DataDomain:          req.DataDomain,
		SourceSchemaVersion: req.SourceSchemaVersion,
		TargetSchemaVersion: req.TargetSchemaVersion,
		GenerateMissingKey:  req.GenerateMissingKey,
		FileName:            req.FileName,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Transition moves the session to status with an operator-visible message
func (s *Session) Transition(status SessionStatus, message string) {
	s.Status = status
	s.Message = message
	s.UpdatedAt = time.Now()
}
