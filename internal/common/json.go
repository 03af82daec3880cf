package common

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes v like json.Marshal but leaves <, > and & unescaped,
// so embedded raw messages are written byte for byte apart from whitespace.
func MarshalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
