package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"lendkeeper/internal/config"
	"lendkeeper/internal/fines"
	"lendkeeper/internal/inventory"
	"lendkeeper/internal/storage"
)

// MustOpenStore opens a storage.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// FixedClock is a manually advanced clock.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock starts a clock at now.
func NewFixedClock(now time.Time) *FixedClock {
	return &FixedClock{now: now.UTC()}
}

// Now returns the current fixed instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to now.
func (c *FixedClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Day is one calendar day in a UTC clock.
const Day = 24 * time.Hour

// Epoch is the instant engines built by NewEngine start at.
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// Engine bundles a catalog and ledger over one store with a fixed clock.
type Engine struct {
	Config  *config.Config
	Store   *storage.Store
	Catalog *inventory.Catalog
	Ledger  *inventory.Ledger
	Fines   *fines.Calculator
	Clock   *FixedClock
}

// NewEngine opens a store for cfg and wires the catalog and ledger to a
// FixedClock starting at Epoch.
func NewEngine(t testing.TB, cfg *config.Config, opts ...inventory.Option) *Engine {
	t.Helper()

	store := MustOpenStore(t, cfg)
	clock := NewFixedClock(Epoch)
	all := append([]inventory.Option{inventory.WithClock(clock)}, opts...)
	calc := fines.New(cfg.Fines)
	catalog := inventory.NewCatalog(store, all...)
	return &Engine{
		Config:  cfg,
		Store:   store,
		Catalog: catalog,
		Ledger:  inventory.NewLedger(store, catalog, calc, cfg, all...),
		Fines:   calc,
		Clock:   clock,
	}
}

// MustRegister registers a resource or fails the test.
func (e *Engine) MustRegister(t testing.TB, res inventory.Resource) string {
	t.Helper()

	id, err := e.Catalog.Register(context.Background(), res)
	if err != nil {
		t.Fatalf("Register %s: %v", res.ID, err)
	}
	return id
}

// MustBorrow borrows resourceID for borrower or fails the test.
func (e *Engine) MustBorrow(t testing.TB, resourceID string, borrower inventory.BorrowerRef) inventory.LendingRecord {
	t.Helper()

	rec, err := e.Ledger.Borrow(context.Background(), inventory.BorrowRequest{
		ResourceID: resourceID,
		Borrower:   borrower,
	})
	if err != nil {
		t.Fatalf("Borrow %s: %v", resourceID, err)
	}
	return rec
}

// Student returns a student borrower reference.
func Student(id string) inventory.BorrowerRef {
	return inventory.BorrowerRef{ID: id, Kind: inventory.BorrowerStudent}
}

// Teacher returns a teacher borrower reference.
func Teacher(id string) inventory.BorrowerRef {
	return inventory.BorrowerRef{ID: id, Kind: inventory.BorrowerTeacher}
}

// Book returns a standard resource with the given subject and class level.
func Book(id, title, subject, classLevel string) inventory.Resource {
	return inventory.Resource{
		ID:    id,
		Type:  inventory.TypeStandard,
		Title: title,
		Classification: inventory.Classification{
			Category:   "book",
			Subject:    subject,
			ClassLevel: classLevel,
		},
	}
}
