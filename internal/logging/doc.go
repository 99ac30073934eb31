// Package logging assembles structured slog loggers and formatting helpers used
// across fieldsync.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so sync code can tag log lines with entry
// IDs, phases, and cycle IDs. A no-op logger is provided for tests and for
// wiring code that has no logger to hand.
package logging
