package models

import "time"

// KeyMapEntry maps one provider source field to a canonical target field
type KeyMapEntry struct {
	Source string `json:"source" bson:"source"`
	Target string `json:"target" bson:"target"`
}

// KeyMapDocument holds the source→target mapping of one provider.
// Entries keep the order the store returned them in; keys are unique.
type KeyMapDocument struct {
	ID        string        `json:"_id"`
	Provider  string        `json:"provider"`
	Entries   []KeyMapEntry `json:"entries"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// Mapping returns the entries as a map
func (d *KeyMapDocument) Mapping() map[string]string {
	m := make(map[string]string, len(d.Entries))
	for _, e := range d.Entries {
		m[e.Source] = e.Target
	}
	return m
}

// NormalizeEntries removes duplicate source keys. A later duplicate overwrites
// the target of the first occurrence and keeps its position.
func NormalizeEntries(entries []KeyMapEntry) []KeyMapEntry {
	result := make([]KeyMapEntry, 0, len(entries))
	index := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := index[e.Source]; ok {
			result[i].Target = e.Target
			continue
		}
		index[e.Source] = len(result)
		result = append(result, e)
	}
	return result
}

// EntriesEqual reports whether two entry lists are identical in order and content
func EntriesEqual(a, b []KeyMapEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
