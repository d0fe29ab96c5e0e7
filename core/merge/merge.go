package merge

import (
	"reflect"
	"sort"
)

// pathSeparator joins nested keys in the paths returned by Conflicts.
const pathSeparator = "."

// DeepMerge returns a new map holding base with patch folded into it.
//
// For every key in patch:
//   - if base holds a map[string]any under the same key and the patch value is
//     also a map[string]any, the two are merged recursively (depth unbounded)
//   - otherwise the patch value replaces the base value, including when a map
//     replaces a scalar or a scalar replaces a map
//
// Keys present only in base are carried over unchanged, so a merge never
// removes a key. Neither base nor patch is modified; nested maps produced by a
// recursive merge are fresh maps, while other values are shared with the
// inputs. Nil inputs behave as empty maps and the result is never nil.
//
// Example:
//
//	merged := merge.DeepMerge(
//	    map[string]any{"a": map[string]any{"x": 1}},
//	    map[string]any{"a": map[string]any{"y": 2}},
//	)
//	// merged == {"a": {"x": 1, "y": 2}}
func DeepMerge(base, patch map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(patch))
	for key, value := range base {
		merged[key] = value
	}

	for key, patchValue := range patch {
		baseValue, exists := merged[key]
		if !exists {
			merged[key] = patchValue
			continue
		}

		baseMap, baseIsMap := baseValue.(map[string]any)
		patchMap, patchIsMap := patchValue.(map[string]any)
		if baseIsMap && patchIsMap {
			merged[key] = DeepMerge(baseMap, patchMap)
			continue
		}

		merged[key] = patchValue
	}

	return merged
}

// Conflicts reports the leaves of base that DeepMerge(base, patch) would
// overwrite with a different value. Paths are dotted key sequences sorted
// lexically. A leaf replaced by an equal value is not a conflict; a map
// replaced by a scalar (or the reverse) is reported at the key where the
// replacement happens.
func Conflicts(base, patch map[string]any) []string {
	conflicts := make([]string, 0)
	collectConflicts("", base, patch, &conflicts)
	sort.Strings(conflicts)
	return conflicts
}

// collectConflicts walks patch against base and appends overwritten paths.
func collectConflicts(prefix string, base, patch map[string]any, conflicts *[]string) {
	for key, patchValue := range patch {
		baseValue, exists := base[key]
		if !exists {
			continue
		}

		path := key
		if prefix != "" {
			path = prefix + pathSeparator + key
		}

		baseMap, baseIsMap := baseValue.(map[string]any)
		patchMap, patchIsMap := patchValue.(map[string]any)
		if baseIsMap && patchIsMap {
			collectConflicts(path, baseMap, patchMap, conflicts)
			continue
		}

		if !reflect.DeepEqual(baseValue, patchValue) {
			*conflicts = append(*conflicts, path)
		}
	}
}
