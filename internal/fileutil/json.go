package fileutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// WriteJSONAtomic encodes v as indented UTF-8 JSON (no HTML escaping) and
// writes it with WriteFileAtomic.
func WriteJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0o644)
}
