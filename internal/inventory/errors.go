package inventory

import (
	"errors"
	"fmt"
	"strings"

	"lendkeeper/internal/storage"
)

// Kind classifies business outcomes so callers can branch without parsing
// messages.
type Kind string

const (
	KindResourceNotFound    Kind = "resource_not_found"
	KindRecordNotFound      Kind = "record_not_found"
	KindDuplicateIdentifier Kind = "duplicate_identifier"
	KindResourceUnavailable Kind = "resource_unavailable"
	KindNoOpenLoan          Kind = "no_open_loan"
	KindAlreadyReturned     Kind = "already_returned"
	KindBorrowerMismatch    Kind = "borrower_mismatch"
	KindResourceHasOpenLoan Kind = "resource_has_open_loan"
	KindValidation          Kind = "validation"
	KindPartialBulkFailure  Kind = "partial_bulk_failure"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindCancelled           Kind = "cancelled"
)

// Error is a typed business outcome. Unexpected failures such as I/O or
// corruption are never wrapped in an Error; they surface as plain wrapped
// errors.
type Error struct {
	Kind       Kind
	ResourceID string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ResourceID != "" {
		b.WriteString(" [")
		b.WriteString(e.ResourceID)
		b.WriteByte(']')
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind satisfies the classifier interface used by CLI exit-code mapping.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Is matches any Error of the same kind, so errors.Is(err, ErrResourceNotFound)
// works regardless of message or resource.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrResourceNotFound    = &Error{Kind: KindResourceNotFound}
	ErrRecordNotFound      = &Error{Kind: KindRecordNotFound}
	ErrDuplicateIdentifier = &Error{Kind: KindDuplicateIdentifier}
	ErrResourceUnavailable = &Error{Kind: KindResourceUnavailable}
	ErrNoOpenLoan          = &Error{Kind: KindNoOpenLoan}
	ErrAlreadyReturned     = &Error{Kind: KindAlreadyReturned}
	ErrBorrowerMismatch    = &Error{Kind: KindBorrowerMismatch}
	ErrResourceHasOpenLoan = &Error{Kind: KindResourceHasOpenLoan}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrPartialBulkFailure  = &Error{Kind: KindPartialBulkFailure}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable}
	ErrCancelled           = &Error{Kind: KindCancelled}
)

// KindOf returns the business kind carried by err, or "" for unexpected errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func resourceError(kind Kind, resourceID, format string, args ...any) *Error {
	return &Error{Kind: kind, ResourceID: resourceID, Message: fmt.Sprintf(format, args...)}
}

// classifyStorage converts exhausted busy retries into StorageUnavailable and
// wraps everything else with the failing operation.
func classifyStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	var business *Error
	if errors.As(err, &business) {
		return err
	}
	if storage.IsBusy(err) {
		return &Error{Kind: KindStorageUnavailable, Message: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
