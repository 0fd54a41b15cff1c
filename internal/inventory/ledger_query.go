package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"lendkeeper/internal/logging"
	"lendkeeper/internal/storage"
)

// OpenRecordFor returns the open record for a resource, or nil when the
// resource is available.
func (l *Ledger) OpenRecordFor(ctx context.Context, resourceID string) (*LendingRecord, error) {
	if _, err := l.catalog.Get(ctx, resourceID); err != nil {
		return nil, err
	}
	row := l.store.DB().QueryRowContext(ctx,
		`SELECT `+recordColumnList+` FROM lending_records WHERE resource_id = ? AND returned_at IS NULL`,
		resourceID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyStorage("open record", err)
	}
	return &rec, nil
}

// GetRecord looks a record up by its public id.
func (l *Ledger) GetRecord(ctx context.Context, ulid string) (LendingRecord, error) {
	row := l.store.DB().QueryRowContext(ctx,
		`SELECT `+recordColumnList+` FROM lending_records WHERE ulid = ?`, ulid)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return LendingRecord{}, newError(KindRecordNotFound, fmt.Sprintf("no lending record %q", ulid))
	}
	if err != nil {
		return LendingRecord{}, classifyStorage("get record", err)
	}
	return rec, nil
}

// HistoryFor yields every record for a resource ordered by borrowed_at
// ascending. Like catalog listings the sequence is restartable.
func (l *Ledger) HistoryFor(ctx context.Context, resourceID string) iter.Seq2[LendingRecord, error] {
	ds := dialect.From("lending_records").
		Select(recordColumns...).
		Where(goqu.Ex{"resource_id": resourceID}).
		Order(goqu.I("borrowed_at").Asc(), goqu.I("id").Asc())
	return l.records(ctx, ds, "resource history")
}

// BorrowerHistory yields every record for a borrower, oldest first.
func (l *Ledger) BorrowerHistory(ctx context.Context, borrower BorrowerRef, openOnly bool) iter.Seq2[LendingRecord, error] {
	borrower = prepareBorrower(borrower)
	exprs := []exp.Expression{goqu.Ex{"borrower_id": borrower.ID, "borrower_kind": string(borrower.Kind)}}
	if openOnly {
		exprs = append(exprs, goqu.C("returned_at").IsNull())
	}
	ds := dialect.From("lending_records").
		Select(recordColumns...).
		Where(exprs...).
		Order(goqu.I("borrowed_at").Asc(), goqu.I("id").Asc())
	return l.records(ctx, ds, "borrower history")
}

// OpenFilter narrows OpenRecords.
type OpenFilter struct {
	// DueBefore keeps records with due_at strictly before the instant.
	DueBefore    *time.Time
	BorrowerKind BorrowerKind
	Limit        uint
}

// OpenRecords yields open records ordered by due date, earliest first.
func (l *Ledger) OpenRecords(ctx context.Context, f OpenFilter) iter.Seq2[LendingRecord, error] {
	exprs := []exp.Expression{goqu.C("returned_at").IsNull()}
	if f.DueBefore != nil {
		exprs = append(exprs, goqu.C("due_at").Lt(storage.FormatTime(*f.DueBefore)))
	}
	if f.BorrowerKind != "" {
		exprs = append(exprs, goqu.Ex{"borrower_kind": string(f.BorrowerKind)})
	}
	ds := dialect.From("lending_records").
		Select(recordColumns...).
		Where(exprs...).
		Order(goqu.I("due_at").Asc(), goqu.I("id").Asc())
	if f.Limit > 0 {
		ds = ds.Limit(f.Limit)
	}
	return l.records(ctx, ds, "open records")
}

func (l *Ledger) records(ctx context.Context, ds *goqu.SelectDataset, op string) iter.Seq2[LendingRecord, error] {
	return func(yield func(LendingRecord, error) bool) {
		query, args, err := ds.Prepared(true).ToSQL()
		if err != nil {
			yield(LendingRecord{}, fmt.Errorf("build %s query: %w", op, err))
			return
		}
		rows, err := l.store.QueryContext(ctx, query, args...)
		if err != nil {
			yield(LendingRecord{}, classifyStorage(op, err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(LendingRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(LendingRecord{}, classifyStorage(op, err))
		}
	}
}

// LoanCountFilter selects which records LoanCounts aggregates.
type LoanCountFilter struct {
	BorrowerKind BorrowerKind
	// GroupBy splits counts per classification tag of the borrowed resource.
	GroupBy Dimension
	// Tags restricts counting to loans of resources with these tags.
	Tags map[Dimension]string
}

// BorrowerLoanCount is the number of loans (open or closed) a borrower has
// taken, optionally for one classification tag.
type BorrowerLoanCount struct {
	Borrower BorrowerRef `json:"borrower"`
	Tag      string      `json:"tag,omitempty"`
	Loans    int         `json:"loans"`
}

// LoanCounts aggregates lending history per borrower.
func (l *Ledger) LoanCounts(ctx context.Context, f LoanCountFilter) ([]BorrowerLoanCount, error) {
	if f.GroupBy != "" && !f.GroupBy.Valid() {
		return nil, newError(KindValidation, fmt.Sprintf("unknown classification dimension %q", f.GroupBy))
	}
	exprs := make([]exp.Expression, 0, len(f.Tags)+1)
	if f.BorrowerKind != "" {
		exprs = append(exprs, goqu.I("l.borrower_kind").Eq(string(f.BorrowerKind)))
	}
	for dim, tag := range f.Tags {
		if !dim.Valid() {
			return nil, newError(KindValidation, fmt.Sprintf("unknown classification dimension %q", dim))
		}
		col := goqu.I("r." + dim.column())
		if tag = normalizeTag(tag); tag == "" || tag == Unclassified {
			exprs = append(exprs, col.IsNull())
		} else {
			exprs = append(exprs, col.Eq(tag))
		}
	}

	selects := []any{goqu.I("l.borrower_id"), goqu.I("l.borrower_kind")}
	groups := []any{goqu.I("l.borrower_id"), goqu.I("l.borrower_kind")}
	if f.GroupBy != "" {
		selects = append(selects, goqu.COALESCE(goqu.I("r."+f.GroupBy.column()), Unclassified).As("tag"))
		groups = append(groups, goqu.I("tag"))
	} else {
		selects = append(selects, goqu.V("").As("tag"))
	}
	selects = append(selects, goqu.COUNT(goqu.Star()).As("loans"))

	query, args, err := dialect.From(goqu.T("lending_records").As("l")).
		Join(goqu.T("resources").As("r"), goqu.On(goqu.I("l.resource_id").Eq(goqu.I("r.id")))).
		Select(selects...).
		Where(exprs...).
		GroupBy(groups...).
		Order(goqu.I("l.borrower_kind").Asc(), goqu.I("l.borrower_id").Asc(), goqu.I("tag").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loan count query: %w", err)
	}

	rows, err := l.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyStorage("loan counts", err)
	}
	defer rows.Close()

	var out []BorrowerLoanCount
	for rows.Next() {
		var (
			c    BorrowerLoanCount
			kind string
		)
		if err := rows.Scan(&c.Borrower.ID, &kind, &c.Tag, &c.Loans); err != nil {
			return nil, fmt.Errorf("scan loan count: %w", err)
		}
		c.Borrower.Kind = BorrowerKind(kind)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyStorage("loan counts", err)
	}
	return out, nil
}

// Purge deletes closed records returned before the cutoff. Open records are
// never purged.
func (l *Ledger) Purge(ctx context.Context, returnedBefore time.Time) (int64, error) {
	if returnedBefore.IsZero() {
		return 0, newError(KindValidation, "purge cutoff is required")
	}
	var purged int64
	err := l.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM lending_records WHERE returned_at IS NOT NULL AND returned_at < ?`,
			storage.FormatTime(returnedBefore))
		if err != nil {
			return fmt.Errorf("purge lending records: %w", err)
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, classifyStorage("purge", err)
	}
	logging.WithContext(ctx, l.logger).Info("lending history purged",
		logging.Int64("records", purged),
		logging.Time("cutoff", returnedBefore),
	)
	return purged, nil
}
