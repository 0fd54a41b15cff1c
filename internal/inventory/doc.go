// Package inventory holds the catalog of lendable resources and the lending
// ledger that moves them between shelf and borrower.
//
// The Catalog owns resource identity, descriptive fields and classification.
// The Ledger owns custody: it is the only writer of lending records and the
// only caller of the catalog's availability setter. Every custody change runs
// in a single SQLite transaction, so a resource is never observed available
// while an open record exists, nor unavailable without one. A partial unique
// index on open records backs the single-custody rule at the storage layer.
//
// Business outcomes are reported as *Error values carrying a Kind; storage
// contention that outlives the retry budget surfaces as
// KindStorageUnavailable and every other failure is a plain wrapped error.
//
// Listings return iter.Seq2 sequences that re-run their query on each range,
// so callers always observe current state.
package inventory
