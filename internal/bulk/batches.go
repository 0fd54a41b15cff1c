package bulk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"lendkeeper/internal/inventory"
	"lendkeeper/internal/storage"
)

var dialect = goqu.Dialect("sqlite3")

// ErrBatchNotFound is returned by GetBatch for unknown ids.
var ErrBatchNotFound = errors.New("bulk batch not found")

func (c *Coordinator) persist(ctx context.Context, r Result) error {
	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bulk_batches (id, kind, initiator, policy, request_json, attempted, succeeded, failed, skipped, created_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.BatchID,
			string(r.Kind),
			storage.NullableString(r.Initiator),
			string(r.Policy),
			string(r.Request),
			r.Attempted,
			r.Succeeded,
			r.Failed,
			r.Skipped,
			storage.FormatTime(r.CreatedAt),
			storage.NullableTime(r.CompletedAt),
		); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO bulk_batch_items (batch_id, item_index, resource_id, borrower_id, borrower_kind, status, error_kind, message, record_ulid)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare batch items: %w", err)
		}
		defer stmt.Close()
		for _, o := range r.Outcomes {
			if _, err := stmt.ExecContext(ctx,
				r.BatchID,
				o.Index,
				o.ResourceID,
				storage.NullableString(o.Borrower.ID),
				storage.NullableString(string(o.Borrower.Kind)),
				string(o.Status),
				storage.NullableString(string(o.ErrorKind)),
				storage.NullableString(o.Message),
				storage.NullableString(o.RecordULID),
			); err != nil {
				return fmt.Errorf("insert batch item %d: %w", o.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist batch %s: %w", r.BatchID, err)
	}
	return nil
}

var batchColumns = []any{
	"id", "kind", "initiator", "policy", "request_json", "attempted",
	"succeeded", "failed", "skipped", "created_at", "completed_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (Result, error) {
	var (
		r            Result
		kind         string
		initiator    sql.NullString
		policy       string
		request      sql.NullString
		createdRaw   string
		completedRaw sql.NullString
	)
	if err := row.Scan(&r.BatchID, &kind, &initiator, &policy, &request,
		&r.Attempted, &r.Succeeded, &r.Failed, &r.Skipped, &createdRaw, &completedRaw); err != nil {
		return Result{}, err
	}
	r.Kind = Kind(kind)
	r.Initiator = initiator.String
	r.Policy = Policy(policy)
	if request.Valid && request.String != "" {
		r.Request = []byte(request.String)
	}
	var err error
	if r.CreatedAt, err = storage.ParseTime(createdRaw); err != nil {
		return Result{}, fmt.Errorf("batch %s created_at: %w", r.BatchID, err)
	}
	if r.CompletedAt, err = storage.ParseNullTime(completedRaw); err != nil {
		return Result{}, fmt.Errorf("batch %s completed_at: %w", r.BatchID, err)
	}
	return r, nil
}

// GetBatch reloads a persisted batch with its item outcomes.
func (c *Coordinator) GetBatch(ctx context.Context, id string) (Result, error) {
	query, args, err := dialect.From("bulk_batches").
		Select(batchColumns...).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return Result{}, fmt.Errorf("build batch query: %w", err)
	}
	r, err := scanBatch(c.store.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load batch %s: %w", id, err)
	}

	rows, err := c.store.QueryContext(ctx,
		`SELECT item_index, resource_id, borrower_id, borrower_kind, status, error_kind, message, record_ulid
		   FROM bulk_batch_items WHERE batch_id = ? ORDER BY item_index`, id)
	if err != nil {
		return Result{}, fmt.Errorf("load batch items %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			o          ItemOutcome
			borrowerID sql.NullString
			kind       sql.NullString
			status     string
			errorKind  sql.NullString
			message    sql.NullString
			recordULID sql.NullString
		)
		if err := rows.Scan(&o.Index, &o.ResourceID, &borrowerID, &kind, &status, &errorKind, &message, &recordULID); err != nil {
			return Result{}, fmt.Errorf("scan batch item: %w", err)
		}
		o.Borrower = inventory.BorrowerRef{ID: borrowerID.String, Kind: inventory.BorrowerKind(kind.String)}
		o.Status = Status(status)
		o.ErrorKind = inventory.Kind(errorKind.String)
		o.Message = message.String
		o.RecordULID = recordULID.String
		r.Outcomes = append(r.Outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("load batch items %s: %w", id, err)
	}
	return r, nil
}

// ListBatches returns batch summaries, newest first. Outcomes and request
// payloads are omitted; limit 0 returns every batch.
func (c *Coordinator) ListBatches(ctx context.Context, limit uint) ([]Result, error) {
	ds := dialect.From("bulk_batches").
		Select(batchColumns...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build batch list query: %w", err)
	}
	rows, err := c.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		r, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		r.Request = nil
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return out, nil
}
