package utils

import (
	"bytes"
	"encoding/json"
)

// JSONToString serialises object to JSON without HTML escaping. When the
// optional indent argument is true the output is pretty-printed with
// two-space indentation. On failure it returns a JSON-formatted error string
// rather than an error, so the result is always safe to use in log output.
func JSONToString(object any, indent ...bool) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if len(indent) > 0 && indent[0] {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(object); err != nil {
		return "{\"error\": \"failed to marshal to JSON: " + err.Error() + "\"}"
	}

	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
