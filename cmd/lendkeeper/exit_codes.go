package main

import (
	"context"
	"errors"

	"lendkeeper/internal/bulk"
	"lendkeeper/internal/inventory"
)

const (
	exitFailure     = 1
	exitInvalid     = 2
	exitNotFound    = 3
	exitConflict    = 4
	exitPartialBulk = 5
	exitStorageBusy = 6
	exitCancelled   = 130
)

// exitCode maps business error kinds onto stable process exit codes so
// scripts can branch without parsing messages.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}
	if errors.Is(err, bulk.ErrBatchNotFound) {
		return exitNotFound
	}
	switch inventory.KindOf(err) {
	case inventory.KindValidation:
		return exitInvalid
	case inventory.KindResourceNotFound, inventory.KindRecordNotFound, inventory.KindNoOpenLoan:
		return exitNotFound
	case inventory.KindDuplicateIdentifier,
		inventory.KindResourceUnavailable,
		inventory.KindAlreadyReturned,
		inventory.KindBorrowerMismatch,
		inventory.KindResourceHasOpenLoan:
		return exitConflict
	case inventory.KindPartialBulkFailure:
		return exitPartialBulk
	case inventory.KindStorageUnavailable:
		return exitStorageBusy
	case inventory.KindCancelled:
		return exitCancelled
	}
	return exitFailure
}
