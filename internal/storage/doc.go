// Package storage opens the SQLite database behind the lending engine.
//
// The Store configures each pooled connection with WAL journaling, foreign
// keys, a busy timeout and immediate transactions, applies the embedded
// schema under a cross-process file lock, and exposes WithTx so callers run
// each business operation as one serializable unit. Busy errors are retried
// with bounded exponential backoff before surfacing as ErrBusy.
//
// Timestamps are stored as fixed-width UTC text (TimeLayout) so range
// predicates such as due_at < ? compare correctly as strings. Schema changes
// bump schemaVersion in schema.go.
package storage
