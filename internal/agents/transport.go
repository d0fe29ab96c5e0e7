package agents

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalTransport renders state as UTF-8 JSON indented by two spaces.
// Non-ASCII text and HTML characters are written as is, and every field is
// present, unset ones as null.
func MarshalTransport(state SharedState) (string, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(state); err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	return string(bytes.TrimRight(buffer.Bytes(), "\n")), nil
}

// UnmarshalTransport parses the text produced by MarshalTransport.
func UnmarshalTransport(text string) (SharedState, error) {
	var state SharedState
	if err := json.Unmarshal([]byte(text), &state); err != nil {
		return SharedState{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, nil
}
