package harmonization

import (
	"encoding/json"
	"strings"

	"github.com/ternarybob/harmonia/internal/models"
	"gopkg.in/yaml.v3"
)

// NormalizeCell turns an editor cell into a native value. Maps, slices and nil
// pass through. Strings are tried as JSON, then as a literal with single
// quotes, tuples and True/False/None. Anything else comes back unchanged.
func NormalizeCell(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		return parsed
	}

	if keyword, ok := keywords[strings.TrimSpace(s)]; ok {
		return keyword
	}
	if literal, ok := parseLiteral(s); ok {
		return literal
	}
	return v
}

var keywords = map[string]interface{}{
	"None":  nil,
	"True":  true,
	"False": false,
}

// NormalizeRows applies NormalizeCell to the named columns of every row in place
func NormalizeRows(rows []map[string]interface{}, columns []string) []map[string]interface{} {
	for _, row := range rows {
		for _, col := range columns {
			if val, ok := row[col]; ok {
				row[col] = NormalizeCell(val)
			}
		}
	}
	return rows
}

// parseLiteral reads container and quoted-string literals. Bare words are
// not literals, so any unquoted scalar other than a number or keyword fails.
func parseLiteral(s string) (interface{}, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, false
	}
	switch trimmed[0] {
	case '{', '[', '(', '\'', '"':
	default:
		return nil, false
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(literalToFlow(trimmed)), &doc); err != nil {
		return nil, false
	}
	if len(doc.Content) != 1 || !isLiteralNode(doc.Content[0]) {
		return nil, false
	}

	var parsed interface{}
	if err := doc.Content[0].Decode(&parsed); err != nil {
		return nil, false
	}
	return fromYAML(parsed), true
}

// isLiteralNode accepts flow collections of quoted strings, numbers and the
// tagged keywords written by literalToFlow.
func isLiteralNode(n *yaml.Node) bool {
	if n.Anchor != "" {
		return false
	}
	switch n.Kind {
	case yaml.SequenceNode, yaml.MappingNode:
		if n.Style&yaml.FlowStyle == 0 {
			return false
		}
		for _, child := range n.Content {
			if !isLiteralNode(child) {
				return false
			}
		}
		return true
	case yaml.ScalarNode:
		switch {
		case n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) != 0:
			return true
		case n.Style == yaml.TaggedStyle:
			return n.Tag == "!!null" || n.Tag == "!!bool"
		case n.Style == 0:
			return n.Tag == "!!int" || (n.Tag == "!!float" && isFiniteNumber(n.Value))
		}
	}
	return false
}

func isFiniteNumber(s string) bool {
	lower := strings.ToLower(s)
	return !strings.Contains(lower, "inf") && !strings.Contains(lower, "nan")
}

// literalToFlow rewrites tuple brackets and keyword constants outside quotes
// so the text parses as a YAML flow collection. Keywords are written with an
// explicit tag so they stay distinct from plain yaml words like true or null.
func literalToFlow(s string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(c)
		case c == '(':
			b.WriteByte('[')
		case c == ')':
			b.WriteByte(']')
		case isKeywordAt(s, i, "None"):
			b.WriteString("!!null null")
			i += len("None") - 1
		case isKeywordAt(s, i, "True"):
			b.WriteString("!!bool true")
			i += len("True") - 1
		case isKeywordAt(s, i, "False"):
			b.WriteString("!!bool false")
			i += len("False") - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isKeywordAt(s string, i int, word string) bool {
	if !strings.HasPrefix(s[i:], word) {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	end := i + len(word)
	return end == len(s) || !isIdentByte(s[end])
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// fromYAML converts decoded YAML into the shapes encoding/json produces
func fromYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = fromYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[toKey(k)] = fromYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = fromYAML(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

func toKey(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	data, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return string(data)
}

// hexIdentifier is satisfied by store object ids
type hexIdentifier interface {
	Hex() string
}

// StringifyIdentifiers returns a copy of v with every store object id replaced
// by its hex string, recursing through maps and slices.
func StringifyIdentifiers(v interface{}) interface{} {
	switch t := v.(type) {
	case hexIdentifier:
		return t.Hex()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = StringifyIdentifiers(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = StringifyIdentifiers(val)
		}
		return out
	default:
		return v
	}
}

// fieldsFromRows normalizes the nested columns and builds field definitions
func fieldsFromRows(rows []map[string]interface{}) []models.FieldDefinition {
	return models.FieldDefinitionsFromRows(NormalizeRows(rows, models.JSONColumns))
}
