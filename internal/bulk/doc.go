// Package bulk runs batches of borrow or return requests against the ledger.
//
// A batch is a reporting artifact, not a transaction: every item runs in its
// own ledger transaction and one item's failure never undoes another's
// success. Under the default best_effort policy every item is attempted;
// stop_on_failure skips the items left after the first failure. Items left
// unstarted when the context is cancelled are reported as skipped with kind
// cancelled. With more than one worker, items for distinct resources run
// concurrently while items naming the same resource keep submission order.
//
// Completed batches are persisted with their per-item outcomes and can be
// listed and reloaded for audit.
package bulk
