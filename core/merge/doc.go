// Package merge implements the recursive merge policy used to combine
// mapping-valued state written by independent agents.
//
// [DeepMerge] folds a patch into a base mapping: when both sides hold a nested
// map[string]any under the same key the two maps are merged recursively,
// otherwise the patch value wins. Neither input is modified. [Conflicts] lists
// the leaves a merge would overwrite, which callers use to surface two agents
// writing the same key.
package merge
