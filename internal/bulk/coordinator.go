package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"lendkeeper/internal/config"
	"lendkeeper/internal/inventory"
	"lendkeeper/internal/logging"
	"lendkeeper/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ledger is the subset of *inventory.Ledger the coordinator drives.
type Ledger interface {
	Borrow(ctx context.Context, req inventory.BorrowRequest) (inventory.LendingRecord, error)
	Return(ctx context.Context, req inventory.ReturnRequest) (inventory.LendingRecord, error)
}

// Coordinator executes and records bulk batches.
type Coordinator struct {
	store   *storage.Store
	ledger  Ledger
	clock   inventory.Clock
	logger  *slog.Logger
	workers int
	policy  Policy
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source used for batch timestamps.
func WithClock(clock inventory.Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewCoordinator builds a coordinator using the bulk config section.
func NewCoordinator(store *storage.Store, ledger Ledger, cfg config.Bulk, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		ledger:  ledger,
		clock:   systemClock{},
		workers: cfg.Workers,
		policy:  Policy(cfg.Policy),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers < 1 {
		c.workers = 1
	}
	if c.policy != PolicyStopOnFailure {
		c.policy = PolicyBestEffort
	}
	c.logger = logging.NewComponentLogger(c.logger, "bulk")
	return c
}

// ExecuteBorrow borrows every item independently. The returned error is
// reserved for failures to validate or persist the batch; per-item failures
// are reported in the Result and summarized by Result.Err.
func (c *Coordinator) ExecuteBorrow(ctx context.Context, initiator string, items []BorrowItem) (Result, error) {
	if len(items) == 0 {
		return Result{}, &inventory.Error{Kind: inventory.KindValidation, Message: "bulk borrow requires at least one item"}
	}
	initiator = strings.TrimSpace(initiator)
	return c.execute(ctx, KindBorrow, initiator, items, len(items),
		func(i int) (string, inventory.BorrowerRef) { return strings.TrimSpace(items[i].ResourceID), items[i].Borrower },
		func(ctx context.Context, i int) (inventory.LendingRecord, error) {
			return c.ledger.Borrow(ctx, inventory.BorrowRequest{
				ResourceID: items[i].ResourceID,
				Borrower:   items[i].Borrower,
				LoanPeriod: items[i].LoanPeriod,
				LentBy:     initiator,
				Note:       items[i].Note,
			})
		})
}

// ExecuteReturn returns every item independently, with the same reporting
// rules as ExecuteBorrow.
func (c *Coordinator) ExecuteReturn(ctx context.Context, initiator string, items []ReturnItem) (Result, error) {
	if len(items) == 0 {
		return Result{}, &inventory.Error{Kind: inventory.KindValidation, Message: "bulk return requires at least one item"}
	}
	initiator = strings.TrimSpace(initiator)
	return c.execute(ctx, KindReturn, initiator, items, len(items),
		func(i int) (string, inventory.BorrowerRef) { return strings.TrimSpace(items[i].ResourceID), items[i].Borrower },
		func(ctx context.Context, i int) (inventory.LendingRecord, error) {
			return c.ledger.Return(ctx, inventory.ReturnRequest{
				ResourceID: items[i].ResourceID,
				Borrower:   items[i].Borrower,
				Condition:  items[i].Condition,
				Actor:      initiator,
				Note:       items[i].Note,
			})
		})
}

type itemFunc func(ctx context.Context, i int) (inventory.LendingRecord, error)

func (c *Coordinator) execute(
	ctx context.Context,
	kind Kind,
	initiator string,
	request any,
	n int,
	describe func(i int) (string, inventory.BorrowerRef),
	run itemFunc,
) (Result, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return Result{}, fmt.Errorf("encode batch request: %w", err)
	}

	result := Result{
		BatchID:   uuid.NewString(),
		Kind:      kind,
		Initiator: initiator,
		Policy:    c.policy,
		CreatedAt: c.clock.Now().UTC(),
		Outcomes:  make([]ItemOutcome, n),
		Request:   payload,
	}
	for i := range result.Outcomes {
		resourceID, borrower := describe(i)
		result.Outcomes[i] = ItemOutcome{Index: i, ResourceID: resourceID, Borrower: borrower}
	}

	ctx = logging.WithBatchID(ctx, result.BatchID)
	if initiator != "" {
		ctx = logging.WithActor(ctx, initiator)
	}
	logger := logging.WithContext(ctx, c.logger)
	logger.Info("bulk batch started",
		logging.String("kind", string(kind)),
		logging.Int("items", n),
		logging.Int("workers", c.workers),
		logging.String("policy", string(c.policy)),
	)

	c.runItems(ctx, result.Outcomes, run)

	completed := c.clock.Now().UTC()
	result.CompletedAt = &completed
	result.tally()

	// The batch record is written even when ctx was cancelled mid-run.
	if err := c.persist(context.WithoutCancel(ctx), result); err != nil {
		return result, err
	}

	attrs := []logging.Attr{
		logging.Int("attempted", result.Attempted),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("failed", result.Failed),
		logging.Int("skipped", result.Skipped),
	}
	if result.Failed > 0 || result.Skipped > 0 {
		logging.WarnWithContext(ctx, c.logger, "bulk batch finished with failures", "bulk_partial_failure", attrs...)
	} else {
		logger.Info("bulk batch finished", logging.Args(attrs...)...)
	}
	return result, nil
}

// runItems fills outcomes. Items sharing a resource id form one chain that a
// single worker runs in submission order; chains run concurrently up to the
// worker limit.
func (c *Coordinator) runItems(ctx context.Context, outcomes []ItemOutcome, run itemFunc) {
	var stopped atomic.Bool
	// In-flight items finish even if ctx is cancelled; only unstarted items
	// are skipped.
	itemCtx := context.WithoutCancel(ctx)

	exec := func(i int) {
		if ctx.Err() != nil {
			outcomes[i].Status = StatusSkipped
			outcomes[i].ErrorKind = inventory.KindCancelled
			outcomes[i].Message = "batch cancelled before item started"
			return
		}
		if stopped.Load() {
			outcomes[i].Status = StatusSkipped
			outcomes[i].ErrorKind = inventory.KindCancelled
			outcomes[i].Message = "skipped after earlier failure"
			return
		}
		rec, err := run(itemCtx, i)
		if err != nil {
			outcomes[i].Status = StatusFailed
			outcomes[i].ErrorKind = kindOf(err)
			outcomes[i].Message = err.Error()
			if c.policy == PolicyStopOnFailure {
				stopped.Store(true)
			}
			c.logger.Debug("bulk item failed",
				logging.Int("index", i),
				logging.String(logging.FieldResourceID, outcomes[i].ResourceID),
				logging.Error(err),
			)
			return
		}
		outcomes[i].Status = StatusSucceeded
		outcomes[i].RecordULID = rec.ULID
		outcomes[i].Borrower = rec.Borrower
	}

	if c.workers == 1 {
		for i := range outcomes {
			exec(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(c.workers)
	for _, chain := range chainsByResource(outcomes) {
		g.Go(func() error {
			for _, i := range chain {
				exec(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// chainsByResource groups item indexes by resource id, keeping the order in
// which each resource first appears.
func chainsByResource(outcomes []ItemOutcome) [][]int {
	position := make(map[string]int)
	var chains [][]int
	for i, o := range outcomes {
		p, ok := position[o.ResourceID]
		if !ok {
			p = len(chains)
			position[o.ResourceID] = p
			chains = append(chains, nil)
		}
		chains[p] = append(chains[p], i)
	}
	return chains
}

func kindOf(err error) inventory.Kind {
	if kind := inventory.KindOf(err); kind != "" {
		return kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return inventory.KindCancelled
	}
	return KindUnexpected
}
