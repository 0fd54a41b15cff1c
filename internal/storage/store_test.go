package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"lendkeeper/internal/storage"
	"lendkeeper/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}
	if store.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %q", store.Path())
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := first.ExecContext(ctx,
		`INSERT INTO resources (id, type, title, condition, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"B-1", "standard", "Book", "New", storage.FormatTime(time.Now()), storage.FormatTime(time.Now()),
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	var count int
	if err := second.DB().QueryRowContext(ctx, "SELECT COUNT(1) FROM resources").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected data to survive reopen, got %d rows", count)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.ExecContext(context.Background(), "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	store.Close()

	if _, err := storage.Open(cfg); !errors.Is(err, storage.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := storage.FormatTime(time.Now())

	if _, err := store.ExecContext(ctx,
		`INSERT INTO lending_records (ulid, resource_id, borrower_id, borrower_kind, borrowed_at, due_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"01J0000000000000000000000", "ghost", "s-1", "student", now, now,
	); err == nil {
		t.Fatal("expected foreign key violation for unknown resource")
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.ForeignKeys || !health.IntegrityCheck || !health.SchemaCurrent {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestOpenLoanIndexRejectsSecondOpenRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := storage.FormatTime(time.Now())

	if _, err := store.ExecContext(ctx,
		`INSERT INTO resources (id, type, condition, created_at, updated_at) VALUES ('B-1', 'standard', 'New', ?, ?)`, now, now,
	); err != nil {
		t.Fatalf("insert resource: %v", err)
	}
	insert := `INSERT INTO lending_records (ulid, resource_id, borrower_id, borrower_kind, borrowed_at, due_at) VALUES (?, 'B-1', ?, 'student', ?, ?)`
	if _, err := store.ExecContext(ctx, insert, "u1", "s-1", now, now); err != nil {
		t.Fatalf("first open record: %v", err)
	}
	_, err := store.ExecContext(ctx, insert, "u2", "s-2", now, now)
	if !storage.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e codedError) Code() int     { return e.code }

func TestIsBusy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("disk I/O error"), false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{codedError{5}, true},
		{codedError{6}, true},
		{codedError{5 | 2<<8}, true},
		{codedError{19}, false},
		{fmt.Errorf("wrapped: %w", storage.ErrBusy), true},
	}
	for _, tc := range cases {
		if got := storage.IsBusy(tc.err); got != tc.want {
			t.Fatalf("IsBusy(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestTimeRoundTripPreservesOrdering(t *testing.T) {
	early := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	late := early.Add(time.Nanosecond)

	if storage.FormatTime(early) >= storage.FormatTime(late) {
		t.Fatal("formatted times must sort lexically")
	}
	parsed, err := storage.ParseTime(storage.FormatTime(early))
	if err != nil {
		t.Fatalf("ParseTime failed: %v", err)
	}
	if !parsed.Equal(early) {
		t.Fatalf("expected %v, got %v", early, parsed)
	}
	if _, err := storage.ParseTime("2026-01-02T03:04:05+02:00"); err != nil {
		t.Fatalf("expected RFC3339 fallback: %v", err)
	}
}

func TestWithTxGivesUpAfterBusyRetries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBusyRetry(20, 3))
	store := testsupport.MustOpenStore(t, cfg)
	blocker := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// Both stores open transactions with BEGIN IMMEDIATE.
	hold, err := blocker.DB().BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin blocking tx: %v", err)
	}
	defer hold.Rollback()

	calls := 0
	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		calls++
		return nil
	})
	if !errors.Is(err, storage.ErrBusy) || !storage.IsBusy(err) {
		t.Fatalf("expected ErrBusy after retries, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected the transaction body never to run, ran %d times", calls)
	}

	if err := hold.Rollback(); err != nil {
		t.Fatalf("release blocking tx: %v", err)
	}
	if err := store.WithTx(ctx, func(tx *sql.Tx) error { calls++; return nil }); err != nil {
		t.Fatalf("WithTx after release: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one successful attempt, got %d", calls)
	}
}
