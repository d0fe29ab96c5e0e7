// Package slogobs provides an observability.Provider implementation backed by
// Go's standard library log/slog package.
//
// Spans and in-memory metrics are reported as debug log events; logs go
// through a slog.Handler that emits compact, text or JSON lines. When a
// metrics backend is attached with [WithMetrics] (for example the promobs
// package), counters and histograms are recorded there as well.
//
// The main entry point is [New]; output format and log level default to the
// PLANNER_LOG_FORMAT and PLANNER_LOG_LEVEL environment variables and can be
// tuned with [WithFormat], [WithLevel], [WithOutput] and [WithLogger].
package slogobs
