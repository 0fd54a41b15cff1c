// Package logging assembles structured slog loggers and formatting helpers used
// across lendkeeper components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so ledger and bulk code can tag
// log lines with batch ids, actors, and correlation ids. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
