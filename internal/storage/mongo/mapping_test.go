package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/harmonia/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCompletionFilter(t *testing.T) {
	filter := completionFilter("v2")

	branches, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, branches, 2)

	errorBranch := branches[0].(bson.M)
	assert.Equal(t, bson.M{"$lt": "3"}, errorBranch["statusFlow"], "status compares against the text \"3\"")
	assert.Equal(t, bson.M{"$regex": "_err$"}, errorBranch["schemaVersion"])

	liveBranch := branches[1].(bson.M)
	assert.Equal(t, "3", liveBranch["statusFlow"])
	assert.Equal(t, bson.M{"$eq": "v2"}, liveBranch["schemaVersion"])
}

func TestIDFilter(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, bson.M{"_id": oid}, idFilter(oid.Hex()))
	assert.Equal(t, bson.M{"_id": "custom-id"}, idFilter("custom-id"))
}

func TestSchemaFromBSON(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	raw := bson.M{
		"_id":           oid,
		"schemaVersion": "v2",
		"statusFlow":    "3",
		"createdAt":     primitive.NewDateTimeFromTime(created),
		"provider":      "AcmeCo",
		"schema": bson.A{
			bson.M{"name": "amount", "type": "number", "constraints": bson.M{"min": int32(0)}, "note": "x"},
			bson.D{{Key: "name", Value: "tags"}, {Key: "itemDefinition", Value: bson.D{{Key: "type", Value: "string"}}}},
			"not a row",
		},
	}

	doc := schemaFromBSON(raw)

	assert.Equal(t, oid.Hex(), doc.ID)
	assert.Equal(t, "v2", doc.SchemaVersion)
	assert.Equal(t, models.StatusFlow("3"), doc.StatusFlow)
	assert.Equal(t, created, doc.CreatedAt)
	assert.Equal(t, map[string]interface{}{"provider": "AcmeCo"}, doc.Extra)

	require.Len(t, doc.Schema, 2)
	assert.Equal(t, "amount", doc.Schema[0].Name)
	assert.Equal(t, map[string]interface{}{"min": int32(0)}, doc.Schema[0].Constraints)
	assert.Equal(t, map[string]interface{}{"note": "x"}, doc.Schema[0].Extra)
	assert.Equal(t, map[string]interface{}{"type": "string"}, doc.Schema[1].ItemDefinition)
}

func TestSchemaFromBSON_NumericStatus(t *testing.T) {
	doc := schemaFromBSON(bson.M{"schemaVersion": "v1", "statusFlow": int32(2)})
	assert.Equal(t, models.StatusFlow("2"), doc.StatusFlow)

	doc = schemaFromBSON(bson.M{"schemaVersion": "v1"})
	assert.Equal(t, "NA", doc.StatusFlow.Display())
}

func TestKeymapFromBSON_PreservesOrder(t *testing.T) {
	oid := primitive.NewObjectID()
	raw := bson.D{
		{Key: "_id", Value: oid},
		{Key: "OtherCo", Value: bson.D{{Key: "x", Value: "y"}}},
		{Key: "AcmeCo", Value: bson.D{
			{Key: "zeta", Value: "z_field"},
			{Key: "alpha", Value: "a_field"},
		}},
	}

	doc := keymapFromBSON(raw, "AcmeCo")

	assert.Equal(t, oid.Hex(), doc.ID)
	assert.Equal(t, "AcmeCo", doc.Provider)
	assert.Equal(t, []models.KeyMapEntry{
		{Source: "zeta", Target: "z_field"},
		{Source: "alpha", Target: "a_field"},
	}, doc.Entries)
}

func TestEntriesToBSON(t *testing.T) {
	d := entriesToBSON([]models.KeyMapEntry{
		{Source: "a", Target: "x"},
		{Source: "b", Target: "y"},
		{Source: "a", Target: "z"},
	})

	assert.Equal(t, bson.D{{Key: "a", Value: "z"}, {Key: "b", Value: "y"}}, d)
}

func TestFieldDefinitionBSON_InlinesExtra(t *testing.T) {
	fields := []models.FieldDefinition{{
		Name:        "amount",
		Type:        "number",
		Constraints: map[string]interface{}{"min": 0},
		Extra:       map[string]interface{}{"description": "total"},
	}}

	data, err := bson.Marshal(bson.M{"schema": fields})
	require.NoError(t, err)

	var decoded bson.M
	require.NoError(t, bson.Unmarshal(data, &decoded))

	rows := normalizeValue(decoded["schema"]).([]interface{})
	require.Len(t, rows, 1)
	row := rows[0].(map[string]interface{})
	assert.Equal(t, "amount", row["name"])
	assert.Equal(t, "total", row["description"])
	assert.NotContains(t, row, "extra")
}

func TestNormalizeValue(t *testing.T) {
	oid := primitive.NewObjectID()
	in := bson.D{
		{Key: "id", Value: oid},
		{Key: "list", Value: bson.A{bson.M{"k": "v"}}},
	}

	assert.Equal(t, map[string]interface{}{
		"id":   oid.Hex(),
		"list": []interface{}{map[string]interface{}{"k": "v"}},
	}, normalizeValue(in))
}
