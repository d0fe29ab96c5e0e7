package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrEmptyContent is returned when a complex type is requested from blank text.
var ErrEmptyContent = errors.New("content is empty")

// ParseStringAs parses content into a value of type T.
//
// Primitive kinds (string, bool, integers, floats) are converted directly,
// accepting a {"type": ..., "value": ...} envelope as well. Every other kind
// is decoded as JSON with the following fallbacks, tried in order until one
// succeeds:
//
//  1. the content as-is
//  2. the JSON candidate extracted from the content (inside a ``` fence, or
//     between the first opening and the last closing bracket)
//  3. the candidate repaired by jsonrepair
//  4. the repaired candidate with schema envelopes unwrapped
//
// Example usage:
//
//	type Objective struct {
//	    ActionVerb string `json:"action_verb"`
//	    BloomLevel int    `json:"bloom_level"`
//	}
//
//	objective, err := parse.ParseStringAs[Objective]("```json\n{\"action_verb\": \"giải\", \"bloom_level\": 3}\n```")
//	objective, err = parse.ParseStringAs[Objective](`{action_verb: 'giải', bloom_level: 3,}`)
func ParseStringAs[T any](content string) (T, error) {
	var result T

	kind := reflect.TypeFor[T]().Kind()
	if isPrimitive(kind) {
		if err := parsePrimitive(content, reflect.ValueOf(&result).Elem()); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := decodeJSON(content, &result); err != nil {
		return result, err
	}
	return result, nil
}

func isPrimitive(kind reflect.Kind) bool {
	switch kind {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// parsePrimitive sets target from content, retrying with the unwrapped value
// when content is a schema envelope.
func parsePrimitive(content string, target reflect.Value) error {
	if target.Kind() == reflect.String {
		if unwrapped, err := tryUnwrapPrimitive(content); err == nil {
			target.SetString(unwrapped)
			return nil
		}
		target.SetString(content)
		return nil
	}

	err := setPrimitive(strings.TrimSpace(content), target)
	if err == nil {
		return nil
	}

	if unwrapped, unwrapErr := tryUnwrapPrimitive(content); unwrapErr == nil {
		if retryErr := setPrimitive(unwrapped, target); retryErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse content as %s: %w", target.Kind(), err)
}

func setPrimitive(content string, target reflect.Value) error {
	switch target.Kind() {
	case reflect.Bool:
		value, err := strconv.ParseBool(content)
		if err != nil {
			return err
		}
		target.SetBool(value)
	case reflect.Float32, reflect.Float64:
		value, err := strconv.ParseFloat(content, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetFloat(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		value, err := strconv.ParseInt(content, 10, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetInt(value)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		value, err := strconv.ParseUint(content, 10, target.Type().Bits())
		if err != nil {
			return err
		}
		target.SetUint(value)
	default:
		return fmt.Errorf("unsupported kind %s", target.Kind())
	}
	return nil
}

// decodeJSON runs the recovery chain described on ParseStringAs.
func decodeJSON(content string, target any) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	firstErr := json.Unmarshal([]byte(content), target)
	if firstErr == nil {
		return nil
	}

	candidate := ExtractJSONCandidate(content)
	if candidate != content {
		if err := json.Unmarshal([]byte(candidate), target); err == nil {
			return nil
		}
	}

	repaired, repairErr := jsonrepair.JSONRepair(candidate)
	if repairErr != nil {
		return fmt.Errorf("failed to unmarshal content as %T and failed to repair JSON: unmarshal error: %w, repair error: %v", target, firstErr, repairErr)
	}

	repairedErr := json.Unmarshal([]byte(repaired), target)
	if repairedErr == nil {
		return nil
	}

	// Models sometimes echo the schema: {"field": {"type": "string", "value": "x"}}.
	if unwrapped, unwrapErr := unwrapSchemaValues(repaired); unwrapErr == nil {
		if err := json.Unmarshal([]byte(unwrapped), target); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to unmarshal repaired JSON as %T: %w (original content: %s, repaired: %s)", target, repairedErr, content, repaired)
}

// ExtractJSONCandidate returns the most likely JSON payload inside content:
// the body of the first ``` fence if there is one, otherwise the span from
// the first '{' or '[' to the last matching closing bracket. When nothing
// looks like JSON the trimmed content is returned unchanged.
func ExtractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)

	if fenced, found := fencedBlock(trimmed); found {
		trimmed = fenced
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return trimmed
	}

	closing := byte('}')
	if trimmed[start] == '[' {
		closing = ']'
	}

	end := strings.LastIndexByte(trimmed, closing)
	if end <= start {
		return trimmed[start:]
	}

	return trimmed[start : end+1]
}

// fencedBlock returns the body of the first markdown code fence.
func fencedBlock(content string) (string, bool) {
	const fence = "```"

	open := strings.Index(content, fence)
	if open < 0 {
		return "", false
	}

	body := content[open+len(fence):]
	// Skip the language tag ("json") up to the end of the line.
	if newline := strings.IndexByte(body, '\n'); newline >= 0 && !strings.ContainsAny(body[:newline], "{[") {
		body = body[newline+1:]
	}

	if closeIndex := strings.Index(body, fence); closeIndex >= 0 {
		body = body[:closeIndex]
	}

	return strings.TrimSpace(body), true
}

// tryUnwrapPrimitive returns the value of a {"type": ..., "value": ...}
// envelope as a string.
func tryUnwrapPrimitive(content string) (string, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &data); err != nil {
		return "", err
	}

	value, isEnvelope := envelopeValue(data)
	if !isEnvelope {
		return "", errors.New("not a schema-wrapped value")
	}

	switch typed := value.(type) {
	case string:
		return typed, nil
	case float64, bool:
		return fmt.Sprintf("%v", typed), nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// envelopeValue reports whether data is exactly {"type": ..., "value": ...}.
func envelopeValue(data map[string]any) (any, bool) {
	if len(data) != 2 {
		return nil, false
	}
	if _, hasType := data["type"]; !hasType {
		return nil, false
	}
	value, hasValue := data["value"]
	return value, hasValue
}

// unwrapSchemaValues replaces every schema envelope in a JSON document with
// its value.
//
// Example input:
//
//	{"topic": {"type": "string", "value": "phân số"}, "bloom_level": {"type": "integer", "value": 3}}
//
// Example output:
//
//	{"bloom_level":3,"topic":"phân số"}
func unwrapSchemaValues(document string) (string, error) {
	var data any
	if err := json.Unmarshal([]byte(document), &data); err != nil {
		return "", err
	}

	encoded, err := json.Marshal(recursiveUnwrap(data))
	if err != nil {
		return "", err
	}

	return string(encoded), nil
}

func recursiveUnwrap(data any) any {
	switch typed := data.(type) {
	case map[string]any:
		if value, isEnvelope := envelopeValue(typed); isEnvelope {
			return recursiveUnwrap(value)
		}

		result := make(map[string]any, len(typed))
		for key, value := range typed {
			result[key] = recursiveUnwrap(value)
		}
		return result

	case []any:
		result := make([]any, len(typed))
		for index, value := range typed {
			result[index] = recursiveUnwrap(value)
		}
		return result

	default:
		return data
	}
}
