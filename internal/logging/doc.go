// Package logging assembles structured slog loggers and formatting helpers used
// across arkimedes.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so batch code can automatically
// tag log lines with run IDs, row numbers, actions, and identifiers. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
