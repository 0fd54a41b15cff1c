package bulk_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"lendkeeper/internal/bulk"
	"lendkeeper/internal/config"
	"lendkeeper/internal/inventory"
	"lendkeeper/internal/logging"
	"lendkeeper/internal/testsupport"
)

func newCoordinator(t *testing.T, opts ...testsupport.ConfigOption) (*testsupport.Engine, *bulk.Coordinator) {
	t.Helper()
	eng := testsupport.NewEngine(t, testsupport.NewConfig(t, opts...))
	coord := bulk.NewCoordinator(eng.Store, eng.Ledger, eng.Config.Bulk,
		bulk.WithClock(eng.Clock),
		bulk.WithLogger(logging.NewNop()),
	)
	return eng, coord
}

func registerBooks(t *testing.T, eng *testsupport.Engine, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("B-%d", i+1)
		eng.MustRegister(t, testsupport.Book(ids[i], ids[i], "", ""))
	}
	return ids
}

func borrowItems(ids []string) []bulk.BorrowItem {
	items := make([]bulk.BorrowItem, len(ids))
	for i, id := range ids {
		items[i] = bulk.BorrowItem{ResourceID: id, Borrower: testsupport.Student(fmt.Sprintf("s-%d", i+1))}
	}
	return items
}

func TestExecuteBorrowPartialSuccess(t *testing.T) {
	eng, coord := newCoordinator(t)
	ctx := context.Background()
	ids := registerBooks(t, eng, 5)
	eng.MustBorrow(t, ids[2], testsupport.Teacher("t-1"))

	result, err := coord.ExecuteBorrow(ctx, "librarian", borrowItems(ids))
	if err != nil {
		t.Fatalf("ExecuteBorrow failed: %v", err)
	}
	if result.Attempted != 5 || result.Succeeded != 4 || result.Failed != 1 || result.Skipped != 0 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
	failed := result.Outcomes[2]
	if failed.Success() || failed.ErrorKind != inventory.KindResourceUnavailable {
		t.Fatalf("expected item 3 to fail as unavailable, got %+v", failed)
	}
	for i, o := range result.Outcomes {
		if i == 2 {
			continue
		}
		if !o.Success() || o.RecordULID == "" {
			t.Fatalf("item %d should have succeeded: %+v", i, o)
		}
		rec, err := eng.Ledger.GetRecord(ctx, o.RecordULID)
		if err != nil {
			t.Fatalf("GetRecord %s: %v", o.RecordULID, err)
		}
		if rec.LentBy != "librarian" {
			t.Fatalf("expected initiator recorded as lent_by, got %q", rec.LentBy)
		}
	}

	batchErr := result.Err()
	if !errors.Is(batchErr, inventory.ErrPartialBulkFailure) {
		t.Fatalf("expected partial bulk failure summary, got %v", batchErr)
	}
}

func TestExecuteBorrowAllSucceed(t *testing.T) {
	eng, coord := newCoordinator(t)
	ids := registerBooks(t, eng, 3)

	result, err := coord.ExecuteBorrow(context.Background(), "", borrowItems(ids))
	if err != nil {
		t.Fatalf("ExecuteBorrow failed: %v", err)
	}
	if result.Err() != nil {
		t.Fatalf("expected no summary error, got %v", result.Err())
	}
}

func TestExecuteBorrowRejectsEmptyBatch(t *testing.T) {
	_, coord := newCoordinator(t)
	if _, err := coord.ExecuteBorrow(context.Background(), "x", nil); inventory.KindOf(err) != inventory.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStopOnFailureSkipsRemainingItems(t *testing.T) {
	eng, coord := newCoordinator(t, testsupport.WithBulk(1, config.BulkPolicyStopOnFailure))
	ids := registerBooks(t, eng, 5)
	eng.MustBorrow(t, ids[1], testsupport.Teacher("t-1"))

	result, err := coord.ExecuteBorrow(context.Background(), "desk", borrowItems(ids))
	if err != nil {
		t.Fatalf("ExecuteBorrow failed: %v", err)
	}
	if result.Succeeded != 1 || result.Failed != 1 || result.Skipped != 3 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
	res, err := eng.Catalog.Get(context.Background(), ids[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Available {
		t.Fatal("committed item must not be rolled back")
	}
}

func TestCancelledBatchSkipsUnstartedItems(t *testing.T) {
	eng, coord := newCoordinator(t)
	ids := registerBooks(t, eng, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := coord.ExecuteBorrow(ctx, "desk", borrowItems(ids))
	if err != nil {
		t.Fatalf("ExecuteBorrow failed: %v", err)
	}
	if result.Skipped != 3 {
		t.Fatalf("expected every item skipped, got %+v", result)
	}
	for _, o := range result.Outcomes {
		if o.ErrorKind != inventory.KindCancelled {
			t.Fatalf("expected cancelled kind, got %+v", o)
		}
	}
	if _, err := coord.GetBatch(context.Background(), result.BatchID); err != nil {
		t.Fatalf("cancelled batch should still be persisted: %v", err)
	}
}

func TestConcurrentWorkersKeepPerResourceOrder(t *testing.T) {
	eng, coord := newCoordinator(t, testsupport.WithBulk(4, config.BulkPolicyBestEffort))
	ctx := context.Background()
	ids := registerBooks(t, eng, 6)

	items := borrowItems(ids)
	// A second request for B-1 must lose to the first, whatever the scheduling.
	items = append(items, bulk.BorrowItem{ResourceID: ids[0], Borrower: testsupport.Student("late")})

	result, err := coord.ExecuteBorrow(ctx, "desk", items)
	if err != nil {
		t.Fatalf("ExecuteBorrow failed: %v", err)
	}
	if result.Succeeded != 6 || result.Failed != 1 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
	if result.Outcomes[0].Status != bulk.StatusSucceeded || result.Outcomes[6].ErrorKind != inventory.KindResourceUnavailable {
		t.Fatalf("expected submission order for B-1, got %+v / %+v", result.Outcomes[0], result.Outcomes[6])
	}
	open, err := eng.Ledger.OpenRecordFor(ctx, ids[0])
	if err != nil || open == nil || open.Borrower.ID != "s-1" {
		t.Fatalf("expected s-1 to hold B-1, got %+v %v", open, err)
	}
}

func TestExecuteReturnAndBatchHistory(t *testing.T) {
	eng, coord := newCoordinator(t)
	ctx := context.Background()
	ids := registerBooks(t, eng, 3)
	if _, err := coord.ExecuteBorrow(ctx, "desk", borrowItems(ids[:2])); err != nil {
		t.Fatalf("ExecuteBorrow failed: %v", err)
	}
	eng.Clock.Advance(testsupport.Day)

	result, err := coord.ExecuteReturn(ctx, "desk", []bulk.ReturnItem{
		{ResourceID: ids[0], Condition: inventory.ConditionGood},
		{ResourceID: ids[1], Condition: "fair"},
		{ResourceID: ids[2], Condition: inventory.ConditionGood},
	})
	if err != nil {
		t.Fatalf("ExecuteReturn failed: %v", err)
	}
	if result.Succeeded != 2 || result.Failed != 1 || result.Outcomes[2].ErrorKind != inventory.KindNoOpenLoan {
		t.Fatalf("unexpected return result: %+v", result)
	}

	loaded, err := coord.GetBatch(ctx, result.BatchID)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if loaded.Kind != bulk.KindReturn || len(loaded.Outcomes) != 3 || loaded.Failed != 1 {
		t.Fatalf("unexpected loaded batch: %+v", loaded)
	}
	if loaded.Outcomes[1].RecordULID != result.Outcomes[1].RecordULID {
		t.Fatalf("outcome mismatch after reload: %+v", loaded.Outcomes[1])
	}
	if len(loaded.Request) == 0 {
		t.Fatal("expected request payload to be stored")
	}

	batches, err := coord.ListBatches(ctx, 0)
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(batches) != 2 || batches[0].BatchID != result.BatchID {
		t.Fatalf("expected newest batch first, got %+v", batches)
	}

	if _, err := coord.GetBatch(ctx, "missing"); !errors.Is(err, bulk.ErrBatchNotFound) {
		t.Fatalf("expected batch not found, got %v", err)
	}
}
