package harmonization

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

// ReconcileInput holds the operator's edits and the documents they target
type ReconcileInput struct {
	DataID     string                   // Schema document id
	KeyMapID   string                   // Keymap document id
	Provider   string                   // Keymap attribute to replace
	SchemaRows []map[string]interface{} // Edited schema table rows
	KeyMap     []models.KeyMapEntry     // Edited keymap table rows
}

// ReconcileResult reports whether the edits were persisted
type ReconcileResult struct {
	Saved          bool   `json:"saved"`
	SchemaModified int64  `json:"schema_modified"`
	KeyMapModified int64  `json:"keymap_modified"`
	Message        string `json:"message,omitempty"`

	// Fields is the normalized schema that was written
	Fields []models.FieldDefinition `json:"-"`
}

// Reconciler writes operator edits back and runs the final workflow
type Reconciler struct {
	store  interfaces.DocumentStore
	client interfaces.WorkflowClient
	logger arbor.ILogger
}

// NewReconciler creates a reconciler over the document store and engine
func NewReconciler(store interfaces.DocumentStore, client interfaces.WorkflowClient, logger arbor.ILogger) *Reconciler {
	return &Reconciler{store: store, client: client, logger: logger}
}

// Reconcile applies the two targeted updates independently. The edits count
// as saved when either update modified its document.
func (r *Reconciler) Reconcile(ctx context.Context, input ReconcileInput) ReconcileResult {
	fields := fieldsFromRows(input.SchemaRows)
	result := ReconcileResult{Fields: fields}

	schemaRes, err := r.store.UpdateSchemaFields(ctx, input.DataID, fields)
	if err != nil {
		r.logger.Error().Err(err).Str("data_id", input.DataID).Msg("Schema update failed")
		result.Message = "Failed to update one or both collections: " + err.Error()
		return result
	}

	keymapRes, err := r.store.UpdateKeyMap(ctx, input.KeyMapID, input.Provider, input.KeyMap)
	if err != nil {
		r.logger.Error().Err(err).Str("keymap_id", input.KeyMapID).Msg("Keymap update failed")
		result.Message = "Failed to update one or both collections: " + err.Error()
		return result
	}

	result.SchemaModified = schemaRes.Modified
	result.KeyMapModified = keymapRes.Modified
	result.Saved = schemaRes.Modified > 0 || keymapRes.Modified > 0

	if result.Saved {
		result.Message = "Edits saved"
	} else {
		result.Message = "Failed to update one or both collections: no document was modified"
	}

	r.logger.Info().
		Str("data_id", input.DataID).
		Str("keymap_id", input.KeyMapID).
		Int64("schema_modified", schemaRes.Modified).
		Int64("keymap_modified", keymapRes.Modified).
		Bool("saved", result.Saved).
		Msg("Edits reconciled")

	return result
}

// FinalPayload builds the final workflow body: the input under the provider
// key and the target schema id under "_id".
func FinalPayload(targetSchemaID, provider string, input interface{}) map[string]interface{} {
	return map[string]interface{}{
		provider: StringifyIdentifiers(input),
		"_id":    targetSchemaID,
	}
}

// RunFinal calls the final workflow and reports the outcome as a result value
func (r *Reconciler) RunFinal(ctx context.Context, targetSchemaID, provider string, input interface{}) *models.FinalResult {
	result := &models.FinalResult{
		FileName:    models.DownloadFileName(provider),
		CompletedAt: time.Now(),
	}

	data, err := r.client.RunFinal(ctx, FinalPayload(targetSchemaID, provider, input))
	if err != nil {
		r.logger.Warn().Err(err).Str("target_schema_id", targetSchemaID).Msg("Final workflow failed")
		result.Error = finalErrorDetail(err)
		return result
	}

	result.Success = true
	result.Data = data
	r.logger.Info().Str("target_schema_id", targetSchemaID).Int("bytes", len(data)).Msg("Final workflow completed")
	return result
}

// finalErrorDetail is the response body for engine errors, the error text otherwise
func finalErrorDetail(err error) string {
	var detailed interface{ Detail() string }
	if errors.As(err, &detailed) {
		return detailed.Detail()
	}
	return err.Error()
}
