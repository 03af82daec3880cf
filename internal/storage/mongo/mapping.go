package mongo

import (
	"fmt"
	"time"

	"github.com/ternarybob/harmonia/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attribute names the workflow engine writes
const (
	fieldID            = "_id"
	fieldSchemaVersion = "schemaVersion"
	fieldSchema        = "schema"
	fieldStatusFlow    = "statusFlow"
	fieldCreatedAt     = "createdAt"
	fieldUpdatedAt     = "updatedAt"
)

// completionFilter selects error variants below stage "3" or the stage "3"
// document of the target version. The server compares statusFlow as text.
func completionFilter(targetVersion string) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{
				fieldStatusFlow:    bson.M{"$lt": string(models.StatusFlowComplete)},
				fieldSchemaVersion: bson.M{"$regex": models.ErrorVersionSuffix + "$"},
			},
			bson.M{
				fieldStatusFlow:    string(models.StatusFlowComplete),
				fieldSchemaVersion: bson.M{"$eq": targetVersion},
			},
		},
	}
}

// idFilter matches an ObjectId when id is its hex form, the raw value otherwise
func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{fieldID: oid}
	}
	return bson.M{fieldID: id}
}

// idString returns the hex form of an ObjectId or the text of any other id
func idString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return t.Hex()
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// normalizeValue converts driver containers to plain maps and slices so
// values encode to JSON and compare with values that came from the editor.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalizeValue(val)
		}
		return m
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			m[k] = normalizeValue(val)
		}
		return m
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}

// schemaFromBSON maps a raw schema document onto the typed record.
// Attributes without a typed home are kept in Extra.
func schemaFromBSON(raw bson.M) *models.SchemaDocument {
	doc := &models.SchemaDocument{
		ID: idString(raw[fieldID]),
	}

	if v, ok := raw[fieldSchemaVersion].(string); ok {
		doc.SchemaVersion = v
	}

	switch v := raw[fieldStatusFlow].(type) {
	case nil:
	case string:
		doc.StatusFlow = models.StatusFlow(v)
	default:
		doc.StatusFlow = models.StatusFlow(fmt.Sprint(v))
	}

	if list, ok := normalizeValue(raw[fieldSchema]).([]interface{}); ok {
		doc.Schema = make([]models.FieldDefinition, 0, len(list))
		for _, item := range list {
			row, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			doc.Schema = append(doc.Schema, models.FieldDefinitionFromRow(row))
		}
	}

	doc.CreatedAt = timeValue(raw[fieldCreatedAt])
	doc.UpdatedAt = timeValue(raw[fieldUpdatedAt])

	for k, v := range raw {
		switch k {
		case fieldID, fieldSchemaVersion, fieldStatusFlow, fieldSchema, fieldCreatedAt, fieldUpdatedAt:
			continue
		}
		if doc.Extra == nil {
			doc.Extra = make(map[string]interface{})
		}
		doc.Extra[k] = normalizeValue(v)
	}

	return doc
}

// schemaToBSON builds the stored form of a schema document without its id
func schemaToBSON(doc *models.SchemaDocument) bson.M {
	m := bson.M{}
	for k, v := range doc.Extra {
		m[k] = v
	}
	m[fieldSchemaVersion] = doc.SchemaVersion
	m[fieldSchema] = doc.Schema
	if doc.StatusFlow != "" {
		m[fieldStatusFlow] = string(doc.StatusFlow)
	}
	if !doc.CreatedAt.IsZero() {
		m[fieldCreatedAt] = doc.CreatedAt
	}
	if !doc.UpdatedAt.IsZero() {
		m[fieldUpdatedAt] = doc.UpdatedAt
	}
	return m
}

// keymapFromBSON reads the provider-keyed mapping of a keymap document,
// keeping the stored key order.
func keymapFromBSON(raw bson.D, provider string) *models.KeyMapDocument {
	doc := &models.KeyMapDocument{Provider: provider}

	for _, e := range raw {
		switch e.Key {
		case fieldID:
			doc.ID = idString(e.Value)
		case fieldUpdatedAt:
			doc.UpdatedAt = timeValue(e.Value)
		case provider:
			doc.Entries = entriesFromValue(e.Value)
		}
	}
	return doc
}

func entriesFromValue(v interface{}) []models.KeyMapEntry {
	var entries []models.KeyMapEntry
	switch t := v.(type) {
	case bson.D:
		for _, e := range t {
			entries = append(entries, models.KeyMapEntry{Source: e.Key, Target: fmt.Sprint(normalizeValue(e.Value))})
		}
	case bson.M:
		for k, val := range t {
			entries = append(entries, models.KeyMapEntry{Source: k, Target: fmt.Sprint(normalizeValue(val))})
		}
	}
	return models.NormalizeEntries(entries)
}

// entriesToBSON encodes entries as an ordered sub-document
func entriesToBSON(entries []models.KeyMapEntry) bson.D {
	d := make(bson.D, 0, len(entries))
	for _, e := range models.NormalizeEntries(entries) {
		d = append(d, bson.E{Key: e.Source, Value: e.Target})
	}
	return d
}

func timeValue(v interface{}) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t
	default:
		return time.Time{}
	}
}
