package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/harmonia/internal/models"
)

func formatSchemaVersions(versions []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Schema Versions (%d)\n\n", len(versions)))
	if len(versions) == 0 {
		sb.WriteString("No schema versions found.\n")
		return sb.String()
	}
	for _, v := range versions {
		sb.WriteString(fmt.Sprintf("- %s\n", v))
	}
	return sb.String()
}

func formatKeyMap(provider string, doc *models.KeyMapDocument) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# KeyMap for %s\n\n", provider))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
	if !doc.UpdatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("**Updated:** %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05")))
	}
	sb.WriteString("\n| source | target |\n|---|---|\n")
	for _, e := range doc.Entries {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", e.Source, e.Target))
	}
	return sb.String()
}

func formatSchemaDocuments(version string, docs []*models.SchemaDocument) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Schema %s (%d documents)\n\n", version, len(docs)))

	for _, doc := range docs {
		info := doc.Info()
		sb.WriteString(fmt.Sprintf("## %s\n", info.ID))
		sb.WriteString(fmt.Sprintf("**Status flow:** %s\n\n", info.StatusFlow))
		sb.WriteString("| name | type | constraints | itemDefinition |\n|---|---|---|---|\n")
		for _, f := range doc.Schema {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				f.Name, f.Type, formatCell(f.Constraints), formatCell(f.ItemDefinition)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatCompletion(target string, result *models.PollResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Completion for %s\n\n", target))
	sb.WriteString(fmt.Sprintf("**Outcome:** %s\n", result.Outcome))
	sb.WriteString(fmt.Sprintf("**Matched documents:** %d\n", len(result.Documents)))

	for _, doc := range result.Documents {
		info := doc.Info()
		sb.WriteString(fmt.Sprintf("- %s (%s, statusFlow %s)\n", info.SchemaVersion, info.ID, info.StatusFlow))
	}
	return sb.String()
}

// formatCell renders a nested constraint or item definition on one line
func formatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}
