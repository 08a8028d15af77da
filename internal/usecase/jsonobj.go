package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// parseObject decodes content as a single JSON object. Numbers stay
// json.Number so comparisons and rewrites never lose precision.
func parseObject(content string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", jsonKind(value))
	}
	return obj, nil
}

// normalize renders obj as sorted-key, 2-space indented JSON without HTML escaping.
func normalize(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(obj); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// withoutFields returns a shallow copy of obj minus the named top-level keys.
func withoutFields(obj map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	default:
		return "value"
	}
}
