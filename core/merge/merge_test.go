package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMerge_DisjointKeysIsUnion(testCase *testing.T) {
	base := map[string]any{"a": 1, "b": map[string]any{"x": "y"}}
	patch := map[string]any{"c": []string{"z"}, "d": nil}

	merged := DeepMerge(base, patch)

	assert.Equal(testCase, map[string]any{
		"a": 1,
		"b": map[string]any{"x": "y"},
		"c": []string{"z"},
		"d": nil,
	}, merged)
}

func TestDeepMerge_Recursion(testCase *testing.T) {
	merged := DeepMerge(
		map[string]any{"a": map[string]any{"x": 1}},
		map[string]any{"a": map[string]any{"y": 2}},
	)

	assert.Equal(testCase, map[string]any{"a": map[string]any{"x": 1, "y": 2}}, merged)
}

func TestDeepMerge_DeepRecursion(testCase *testing.T) {
	base := map[string]any{
		"objective_interpreter": map[string]any{
			"status": "parsed",
			"meta":   map[string]any{"model": "llama3", "attempt": 1},
		},
	}
	patch := map[string]any{
		"objective_interpreter": map[string]any{
			"meta": map[string]any{"attempt": 2},
		},
	}

	merged := DeepMerge(base, patch)

	assert.Equal(testCase, map[string]any{
		"objective_interpreter": map[string]any{
			"status": "parsed",
			"meta":   map[string]any{"model": "llama3", "attempt": 2},
		},
	}, merged)
}

func TestDeepMerge_OverwriteOnTypeMismatch(testCase *testing.T) {
	testCases := []struct {
		name     string
		base     map[string]any
		patch    map[string]any
		expected map[string]any
	}{
		{
			name:     "scalar replaces map",
			base:     map[string]any{"a": map[string]any{"x": 1}},
			patch:    map[string]any{"a": 5},
			expected: map[string]any{"a": 5},
		},
		{
			name:     "map replaces scalar",
			base:     map[string]any{"a": 5},
			patch:    map[string]any{"a": map[string]any{"x": 1}},
			expected: map[string]any{"a": map[string]any{"x": 1}},
		},
		{
			name:     "slice replaces slice",
			base:     map[string]any{"a": []any{1, 2}},
			patch:    map[string]any{"a": []any{3}},
			expected: map[string]any{"a": []any{3}},
		},
		{
			name:     "nil patch value replaces map",
			base:     map[string]any{"a": map[string]any{"x": 1}},
			patch:    map[string]any{"a": nil},
			expected: map[string]any{"a": nil},
		},
	}

	for _, tc := range testCases {
		testCase.Run(tc.name, func(subTest *testing.T) {
			assert.Equal(subTest, tc.expected, DeepMerge(tc.base, tc.patch))
		})
	}
}

func TestDeepMerge_DoesNotMutateInputs(testCase *testing.T) {
	base := map[string]any{"a": map[string]any{"x": 1}, "keep": true}
	patch := map[string]any{"a": map[string]any{"y": 2}, "new": "v"}

	merged := DeepMerge(base, patch)
	merged["a"].(map[string]any)["z"] = 3

	assert.Equal(testCase, map[string]any{"a": map[string]any{"x": 1}, "keep": true}, base)
	assert.Equal(testCase, map[string]any{"a": map[string]any{"y": 2}, "new": "v"}, patch)
}

func TestDeepMerge_NilInputs(testCase *testing.T) {
	merged := DeepMerge(nil, nil)
	require.NotNil(testCase, merged)
	assert.Empty(testCase, merged)

	assert.Equal(testCase, map[string]any{"a": 1}, DeepMerge(nil, map[string]any{"a": 1}))
	assert.Equal(testCase, map[string]any{"a": 1}, DeepMerge(map[string]any{"a": 1}, nil))
}

func TestDeepMerge_NeverRemovesKeys(testCase *testing.T) {
	base := map[string]any{"a": 1, "b": map[string]any{"c": 2}}
	merged := DeepMerge(base, map[string]any{"b": map[string]any{}})

	assert.Contains(testCase, merged, "a")
	assert.Equal(testCase, map[string]any{"c": 2}, merged["b"])
}

func TestConflicts(testCase *testing.T) {
	testCases := []struct {
		name     string
		base     map[string]any
		patch    map[string]any
		expected []string
	}{
		{
			name:     "disjoint keys",
			base:     map[string]any{"a": 1},
			patch:    map[string]any{"b": 2},
			expected: []string{},
		},
		{
			name:     "same value is not a conflict",
			base:     map[string]any{"a": map[string]any{"x": "same"}},
			patch:    map[string]any{"a": map[string]any{"x": "same"}},
			expected: []string{},
		},
		{
			name:     "nested leaf overwritten",
			base:     map[string]any{"agent": map[string]any{"status": "parsed", "n": 1}},
			patch:    map[string]any{"agent": map[string]any{"status": "malformed", "n": 1}},
			expected: []string{"agent.status"},
		},
		{
			name:     "map replaced by scalar",
			base:     map[string]any{"a": map[string]any{"x": 1}, "b": 1},
			patch:    map[string]any{"a": 5, "b": 2},
			expected: []string{"a", "b"},
		},
	}

	for _, tc := range testCases {
		testCase.Run(tc.name, func(subTest *testing.T) {
			assert.Equal(subTest, tc.expected, Conflicts(tc.base, tc.patch))
		})
	}
}
