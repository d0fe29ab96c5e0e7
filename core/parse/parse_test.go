package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type objective struct {
	ActionVerb string `json:"action_verb"`
	BloomLevel int    `json:"bloom_level"`
	Topic      string `json:"topic"`
	GradeLevel string `json:"grade_level"`
}

func TestParseStringAs_Primitives(testCase *testing.T) {
	text, err := ParseStringAs[string]("xin chào")
	require.NoError(testCase, err)
	assert.Equal(testCase, "xin chào", text)

	text, err = ParseStringAs[string](`{"type": "string", "value": "wrapped"}`)
	require.NoError(testCase, err)
	assert.Equal(testCase, "wrapped", text)

	flag, err := ParseStringAs[bool](" true ")
	require.NoError(testCase, err)
	assert.True(testCase, flag)

	level, err := ParseStringAs[int](`{"type": "integer", "value": 3}`)
	require.NoError(testCase, err)
	assert.Equal(testCase, 3, level)

	ratio, err := ParseStringAs[float64]("0.1")
	require.NoError(testCase, err)
	assert.InDelta(testCase, 0.1, ratio, 1e-9)

	count, err := ParseStringAs[uint8]("200")
	require.NoError(testCase, err)
	assert.Equal(testCase, uint8(200), count)
}

func TestParseStringAs_PrimitiveErrors(testCase *testing.T) {
	_, err := ParseStringAs[int]("three")
	assert.Error(testCase, err)

	_, err = ParseStringAs[int8]("300")
	assert.Error(testCase, err)

	_, err = ParseStringAs[bool]("maybe")
	assert.Error(testCase, err)
}

func TestParseStringAs_Struct(testCase *testing.T) {
	expected := objective{ActionVerb: "giải", BloomLevel: 3, Topic: "phương trình bậc hai", GradeLevel: "Lớp 9"}

	testCases := []struct {
		name    string
		content string
	}{
		{
			name:    "plain JSON",
			content: `{"action_verb":"giải","bloom_level":3,"topic":"phương trình bậc hai","grade_level":"Lớp 9"}`,
		},
		{
			name:    "fenced with language tag",
			content: "Đây là kết quả:\n```json\n{\"action_verb\":\"giải\",\"bloom_level\":3,\"topic\":\"phương trình bậc hai\",\"grade_level\":\"Lớp 9\"}\n```\nHết.",
		},
		{
			name:    "prose around object",
			content: `Kết quả phân tích: {"action_verb":"giải","bloom_level":3,"topic":"phương trình bậc hai","grade_level":"Lớp 9"} cảm ơn.`,
		},
		{
			name:    "needs repair",
			content: `{action_verb: 'giải', bloom_level: 3, topic: 'phương trình bậc hai', grade_level: 'Lớp 9',}`,
		},
		{
			name:    "schema envelopes",
			content: `{"action_verb":{"type":"string","value":"giải"},"bloom_level":{"type":"integer","value":3},"topic":"phương trình bậc hai","grade_level":"Lớp 9"}`,
		},
	}

	for _, tc := range testCases {
		testCase.Run(tc.name, func(subTest *testing.T) {
			parsed, err := ParseStringAs[objective](tc.content)
			require.NoError(subTest, err)
			assert.Equal(subTest, expected, parsed)
		})
	}
}

func TestParseStringAs_ComplexErrors(testCase *testing.T) {
	_, err := ParseStringAs[objective]("   ")
	assert.ErrorIs(testCase, err, ErrEmptyContent)

	_, err = ParseStringAs[objective](`["not", "an", "object"]`)
	assert.Error(testCase, err)
}

func TestParseStringAs_MapAndSlice(testCase *testing.T) {
	values, err := ParseStringAs[map[string]any](`{"a": {"b": 1}}`)
	require.NoError(testCase, err)
	assert.Equal(testCase, map[string]any{"a": map[string]any{"b": float64(1)}}, values)

	items, err := ParseStringAs[[]string]("```\n[\"x\", \"y\"]\n```")
	require.NoError(testCase, err)
	assert.Equal(testCase, []string{"x", "y"}, items)
}

func TestExtractJSONCandidate(testCase *testing.T) {
	assert.Equal(testCase, `{"a":1}`, ExtractJSONCandidate("text {\"a\":1} more"))
	assert.Equal(testCase, `[1,2]`, ExtractJSONCandidate("```json\n[1,2]\n```"))
	assert.Equal(testCase, `{"a":1}`, ExtractJSONCandidate("```{\"a\":1}```"))
	assert.Equal(testCase, "no json here", ExtractJSONCandidate("  no json here "))
	assert.Equal(testCase, `{"open": 1`, ExtractJSONCandidate(`prefix {"open": 1`))
}
