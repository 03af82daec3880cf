package models

import (
	"encoding/json"
	"strings"
	"time"
)

// ErrorVersionSuffix marks schema documents the workflow engine wrote for a failed run
const ErrorVersionSuffix = "_err"

// Column names in an editable schema row whose values may arrive as JSON text
const (
	ColumnConstraints    = "constraints"
	ColumnItemDefinition = "itemDefinition"
)

// JSONColumns lists the schema row columns that carry nested structures
var JSONColumns = []string{ColumnConstraints, ColumnItemDefinition}

// FieldDefinition is one canonical field of a target schema.
// Unknown attributes written by the engine are kept in Extra and round-trip untouched.
type FieldDefinition struct {
	Name           string                 `json:"name" bson:"name"`
	Type           string                 `json:"type,omitempty" bson:"type,omitempty"`
	Constraints    interface{}            `json:"constraints,omitempty" bson:"constraints,omitempty"`
	ItemDefinition interface{}            `json:"itemDefinition,omitempty" bson:"itemDefinition,omitempty"`
	Extra          map[string]interface{} `json:"-" bson:",inline"`
}

var fieldDefinitionKeys = map[string]bool{
	"name":               true,
	"type":               true,
	ColumnConstraints:    true,
	ColumnItemDefinition: true,
}

// MarshalJSON flattens Extra next to the known attributes
func (f FieldDefinition) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.ToRow())
}

// UnmarshalJSON splits a flat JSON object into known attributes and Extra
func (f *FieldDefinition) UnmarshalJSON(data []byte) error {
	var row map[string]interface{}
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	*f = FieldDefinitionFromRow(row)
	return nil
}

// ToRow returns the field as a flat table row
func (f FieldDefinition) ToRow() map[string]interface{} {
	row := make(map[string]interface{}, len(f.Extra)+4)
	for k, v := range f.Extra {
		row[k] = v
	}
	row["name"] = f.Name
	if f.Type != "" {
		row["type"] = f.Type
	}
	if f.Constraints != nil {
		row[ColumnConstraints] = f.Constraints
	}
	if f.ItemDefinition != nil {
		row[ColumnItemDefinition] = f.ItemDefinition
	}
	return row
}

// FieldDefinitionFromRow builds a field from a flat table row
func FieldDefinitionFromRow(row map[string]interface{}) FieldDefinition {
	f := FieldDefinition{}
	if v, ok := row["name"].(string); ok {
		f.Name = v
	}
	if v, ok := row["type"].(string); ok {
		f.Type = v
	}
	f.Constraints = row[ColumnConstraints]
	f.ItemDefinition = row[ColumnItemDefinition]

	for k, v := range row {
		if fieldDefinitionKeys[k] {
			continue
		}
		if f.Extra == nil {
			f.Extra = make(map[string]interface{})
		}
		f.Extra[k] = v
	}
	return f
}

// FieldDefinitionsFromRows converts editor rows into field definitions
func FieldDefinitionsFromRows(rows []map[string]interface{}) []FieldDefinition {
	fields := make([]FieldDefinition, 0, len(rows))
	for _, row := range rows {
		fields = append(fields, FieldDefinitionFromRow(row))
	}
	return fields
}

// SchemaDocument is one schema version in the SchemaDocuments collection
type SchemaDocument struct {
	ID            string            `json:"_id"`                  // Store-assigned identifier (ObjectId hex for mongo)
	SchemaVersion string            `json:"schemaVersion"`        // Lookup key, "_err" suffix marks a failed run
	Schema        []FieldDefinition `json:"schema"`               // Ordered canonical field list
	StatusFlow    StatusFlow        `json:"statusFlow,omitempty"` // Pipeline stage marker, compared as text
	CreatedAt     time.Time         `json:"createdAt,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt,omitempty"`

	// Extra holds any other top-level attributes (provenance written by the engine)
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// IsErrorVariant reports whether the document was written for a failed run
func (d *SchemaDocument) IsErrorVariant() bool {
	return IsErrorVersion(d.SchemaVersion)
}

// IsLiveMatch reports whether the document is the completed, non-error
// document for the requested target version.
func (d *SchemaDocument) IsLiveMatch(targetVersion string) bool {
	return d.StatusFlow == StatusFlowComplete && d.SchemaVersion == targetVersion
}

// Info returns the summary shown above the schema editor
func (d *SchemaDocument) Info() SchemaInfo {
	return SchemaInfo{
		SchemaVersion: d.SchemaVersion,
		ID:            d.ID,
		StatusFlow:    d.StatusFlow.Display(),
	}
}

// SchemaInfo is the "generated schema info" summary of a schema document
type SchemaInfo struct {
	SchemaVersion string `json:"schemaVersion"`
	ID            string `json:"_id"`
	StatusFlow    string `json:"statusFlow"`
}

// IsErrorVersion reports whether a schema version string carries the error suffix
func IsErrorVersion(version string) bool {
	return strings.HasSuffix(version, ErrorVersionSuffix)
}

// ErrorVersion returns the error-variant version string for a target version
func ErrorVersion(version string) string {
	return version + ErrorVersionSuffix
}
