package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FinalResult is the outcome of the final transformation workflow
type FinalResult struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data,omitempty"`  // Harmonized output, object or list, verbatim from the engine
	Error       string          `json:"error,omitempty"` // Response body or transport error on failure
	FileName    string          `json:"file_name,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Download returns the harmonized output re-indented with two spaces.
// Key order, number text and string escapes are kept as the engine sent them.
func (r *FinalResult) Download() ([]byte, error) {
	if !r.Success || len(r.Data) == 0 {
		return nil, fmt.Errorf("no harmonized output available")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Data, "", "  "); err != nil {
		return nil, fmt.Errorf("harmonized output is not valid JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// DownloadFileName is the attachment name for a provider's output
func DownloadFileName(provider string) string {
	return provider + ".json"
}

// TablePreview is a tabular view of the harmonized output
type TablePreview struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// NewTablePreview builds a table from harmonized output.
// A list of objects yields one row per object; an object of equal-length
// lists yields one row per index; any other object yields a single row.
func NewTablePreview(data json.RawMessage) (*TablePreview, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	switch t := v.(type) {
	case []interface{}:
		return previewFromRecords(t), nil
	case map[string]interface{}:
		if preview, ok := previewFromColumns(t); ok {
			return preview, nil
		}
		return previewFromRecords([]interface{}{t}), nil
	default:
		return &TablePreview{Columns: []string{"value"}, Rows: [][]interface{}{{t}}}, nil
	}
}

func previewFromRecords(records []interface{}) *TablePreview {
	preview := &TablePreview{Columns: []string{}, Rows: [][]interface{}{}}
	index := map[string]int{}
	maps := make([]map[string]interface{}, 0, len(records))

	for _, r := range records {
		m, ok := r.(map[string]interface{})
		if !ok {
			m = map[string]interface{}{"value": r}
		}
		for _, k := range sortedKeys(m) {
			if _, seen := index[k]; !seen {
				index[k] = len(preview.Columns)
				preview.Columns = append(preview.Columns, k)
			}
		}
		maps = append(maps, m)
	}

	for _, m := range maps {
		row := make([]interface{}, len(preview.Columns))
		for k, v := range m {
			row[index[k]] = v
		}
		preview.Rows = append(preview.Rows, row)
	}
	return preview
}

func previewFromColumns(obj map[string]interface{}) (*TablePreview, bool) {
	if len(obj) == 0 {
		return nil, false
	}
	length := -1
	for _, v := range obj {
		list, ok := v.([]interface{})
		if !ok {
			return nil, false
		}
		if length >= 0 && len(list) != length {
			return nil, false
		}
		length = len(list)
	}

	preview := &TablePreview{Columns: sortedKeys(obj), Rows: make([][]interface{}, 0, length)}
	for i := 0; i < length; i++ {
		row := make([]interface{}, len(preview.Columns))
		for c, k := range preview.Columns {
			row[c] = obj[k].([]interface{})[i]
		}
		preview.Rows = append(preview.Rows, row)
	}
	return preview, true
}
