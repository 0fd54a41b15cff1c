package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lendkeeper/internal/config"
	"lendkeeper/internal/logging"
	"lendkeeper/internal/storage"
)

// MismatchPolicy decides what Return does when the caller names a borrower
// other than the one holding the open record.
type MismatchPolicy string

const (
	MismatchStrict MismatchPolicy = config.MismatchStrict
	MismatchWarn   MismatchPolicy = config.MismatchWarn
)

// Ledger is the single writer of custody state. Every transition runs in one
// transaction that also updates the resource's availability.
type Ledger struct {
	store    *storage.Store
	catalog  *Catalog
	fines    FineCalculator
	clock    Clock
	ids      IDGen
	registry BorrowerRegistry
	logger   *slog.Logger

	loanPeriod func(ResourceType) time.Duration
	mismatch   MismatchPolicy
}

// NewLedger builds a ledger over catalog. Loan periods and the borrower
// mismatch policy come from cfg.
func NewLedger(store *storage.Store, catalog *Catalog, fines FineCalculator, cfg *config.Config, opts ...Option) *Ledger {
	o := buildOptions("ledger", opts)
	policy := MismatchPolicy(cfg.Ledger.BorrowerMismatch)
	if policy != MismatchWarn {
		policy = MismatchStrict
	}
	return &Ledger{
		store:    store,
		catalog:  catalog,
		fines:    fines,
		clock:    o.clock,
		ids:      o.ids,
		registry: o.registry,
		logger:   o.logger,
		loanPeriod: func(t ResourceType) time.Duration {
			return cfg.LoanPeriod(string(t))
		},
		mismatch: policy,
	}
}

// BorrowRequest describes a borrow. A zero LoanPeriod selects the configured
// default for the resource's type.
type BorrowRequest struct {
	ResourceID string
	Borrower   BorrowerRef
	LoanPeriod time.Duration
	LentBy     string
	Note       string
}

// Borrow opens a lending record for the resource and marks it unavailable.
func (l *Ledger) Borrow(ctx context.Context, req BorrowRequest) (LendingRecord, error) {
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	req.Borrower = prepareBorrower(req.Borrower)
	if req.ResourceID == "" {
		return LendingRecord{}, newError(KindValidation, "resource id is required")
	}
	if err := validateStruct(req.Borrower, req.ResourceID); err != nil {
		return LendingRecord{}, err
	}
	if req.LoanPeriod < 0 {
		return LendingRecord{}, resourceError(KindValidation, req.ResourceID, "loan period must not be negative")
	}
	if l.registry != nil {
		known, err := l.registry.Exists(ctx, req.Borrower)
		if err != nil {
			return LendingRecord{}, fmt.Errorf("check borrower %s: %w", req.Borrower, err)
		}
		if !known {
			return LendingRecord{}, resourceError(KindValidation, req.ResourceID, "unknown borrower %s", req.Borrower)
		}
	}

	publicID, err := l.ids.New()
	if err != nil {
		return LendingRecord{}, fmt.Errorf("generate record id: %w", err)
	}

	var record LendingRecord
	err = l.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := l.catalog.getTx(ctx, tx, req.ResourceID)
		if err != nil {
			return err
		}
		if res.Condition == ConditionLost {
			return resourceError(KindResourceUnavailable, res.ID, "resource is marked lost")
		}
		open, err := openRecordTx(ctx, tx, res.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return resourceError(KindResourceUnavailable, res.ID, "already on loan to %s", open.Borrower)
		}

		period := req.LoanPeriod
		if period == 0 {
			period = l.loanPeriod(res.Type)
		}
		now := l.clock.Now().UTC()
		record = LendingRecord{
			ULID:       publicID,
			ResourceID: res.ID,
			Borrower:   req.Borrower,
			BorrowedAt: now,
			DueAt:      now.Add(period),
			LentBy:     strings.TrimSpace(req.LentBy),
			Note:       strings.TrimSpace(req.Note),
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO lending_records (ulid, resource_id, borrower_id, borrower_kind, borrowed_at, due_at, lent_by, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ULID,
			record.ResourceID,
			record.Borrower.ID,
			string(record.Borrower.Kind),
			storage.FormatTime(record.BorrowedAt),
			storage.FormatTime(record.DueAt),
			storage.NullableString(record.LentBy),
			storage.NullableString(record.Note),
		)
		if storage.IsUniqueViolation(err) {
			return resourceError(KindResourceUnavailable, res.ID, "already on loan")
		}
		if err != nil {
			return fmt.Errorf("insert lending record: %w", err)
		}
		if record.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("lending record id: %w", err)
		}
		return l.catalog.setAvailability(ctx, tx, res.ID, false)
	})
	if err != nil {
		return LendingRecord{}, classifyStorage("borrow", err)
	}

	logging.WithContext(ctx, l.logger).Info("resource borrowed",
		logging.String(logging.FieldResourceID, record.ResourceID),
		logging.String(logging.FieldBorrowerID, record.Borrower.String()),
		logging.String(logging.FieldRecordID, record.ULID),
		logging.Time("due_at", record.DueAt),
	)
	return record, nil
}

// ReturnRequest describes a return. Borrower may be left zero to skip the
// borrower check; Actor is recorded as returned_by.
type ReturnRequest struct {
	ResourceID string
	Borrower   BorrowerRef
	Condition  Condition
	Actor      string
	Note       string
}

// Return closes the open record for the resource, computes the fine and makes
// the resource available again. Returning an already closed loan fails with
// AlreadyReturned and writes nothing.
func (l *Ledger) Return(ctx context.Context, req ReturnRequest) (LendingRecord, error) {
	req.ResourceID = strings.TrimSpace(req.ResourceID)
	if req.ResourceID == "" {
		return LendingRecord{}, newError(KindValidation, "resource id is required")
	}
	condition, err := ParseCondition(string(req.Condition))
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			typed.ResourceID = req.ResourceID
		}
		return LendingRecord{}, err
	}
	if !req.Borrower.IsZero() {
		req.Borrower = prepareBorrower(req.Borrower)
		if err := validateStruct(req.Borrower, req.ResourceID); err != nil {
			return LendingRecord{}, err
		}
	}

	var (
		record   LendingRecord
		mismatch bool
	)
	err = l.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := l.catalog.getTx(ctx, tx, req.ResourceID); err != nil {
			return err
		}
		open, err := openRecordTx(ctx, tx, req.ResourceID)
		if err != nil {
			return err
		}
		if open == nil {
			latest, err := latestRecordTx(ctx, tx, req.ResourceID)
			if err != nil {
				return err
			}
			if latest != nil {
				return resourceError(KindAlreadyReturned, req.ResourceID, "last loan closed at %s",
					latest.ReturnedAt.Format(time.RFC3339))
			}
			return resourceError(KindNoOpenLoan, req.ResourceID, "resource has never been lent")
		}

		if !req.Borrower.IsZero() && req.Borrower != open.Borrower {
			if l.mismatch == MismatchStrict {
				return resourceError(KindBorrowerMismatch, req.ResourceID, "on loan to %s, not %s",
					open.Borrower, req.Borrower)
			}
			mismatch = true
		}

		returnedAt := l.clock.Now().UTC()
		fine := l.fines.Compute(condition, returnedAt.Sub(open.DueAt))

		result, err := tx.ExecContext(ctx,
			`UPDATE lending_records
			    SET returned_at = ?, return_condition = ?, fine_minor = ?, returned_by = ?,
			        note = COALESCE(?, note)
			  WHERE id = ? AND returned_at IS NULL`,
			storage.FormatTime(returnedAt),
			string(condition),
			fine,
			storage.NullableString(strings.TrimSpace(req.Actor)),
			storage.NullableString(strings.TrimSpace(req.Note)),
			open.ID,
		)
		if err != nil {
			return fmt.Errorf("close lending record: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("close lending record: %w", err)
		}
		if affected == 0 {
			return resourceError(KindAlreadyReturned, req.ResourceID, "loan closed concurrently")
		}

		record = *open
		record.ReturnedAt = &returnedAt
		record.ReturnCondition = condition
		record.FineMinor = fine
		record.ReturnedBy = strings.TrimSpace(req.Actor)
		if note := strings.TrimSpace(req.Note); note != "" {
			record.Note = note
		}
		return l.catalog.setAvailability(ctx, tx, req.ResourceID, true)
	})
	if err != nil {
		return LendingRecord{}, classifyStorage("return", err)
	}

	logger := logging.WithContext(ctx, l.logger)
	if mismatch {
		logging.WarnWithContext(ctx, l.logger, "returned by a different borrower", "borrower_mismatch",
			logging.String(logging.FieldResourceID, record.ResourceID),
			logging.String(logging.FieldBorrowerID, record.Borrower.String()),
			logging.String("returned_for", req.Borrower.String()),
		)
	}
	logger.Info("resource returned",
		logging.String(logging.FieldResourceID, record.ResourceID),
		logging.String(logging.FieldBorrowerID, record.Borrower.String()),
		logging.String(logging.FieldRecordID, record.ULID),
		logging.String("condition", string(record.ReturnCondition)),
		logging.Int64("fine_minor", record.FineMinor),
	)
	return record, nil
}

func openRecordTx(ctx context.Context, tx *sql.Tx, resourceID string) (*LendingRecord, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumnList+` FROM lending_records WHERE resource_id = ? AND returned_at IS NULL`,
		resourceID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load open record for %s: %w", resourceID, err)
	}
	return &rec, nil
}

func latestRecordTx(ctx context.Context, tx *sql.Tx, resourceID string) (*LendingRecord, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+recordColumnList+` FROM lending_records WHERE resource_id = ?
		  ORDER BY borrowed_at DESC, id DESC LIMIT 1`,
		resourceID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest record for %s: %w", resourceID, err)
	}
	return &rec, nil
}
