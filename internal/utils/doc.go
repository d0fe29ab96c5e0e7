// Package utils provides shared low-level helpers used by the planner
// internals: a synchronous JSON POST helper for model provider APIs, a
// generic pointer helper and a JSON string helper for log output.
//
// Key entry points: [DoPostSync] for JSON round-trips, [Ptr] for converting
// values to pointers, [JSONToString] for log output.
package utils
