package inventory

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"lendkeeper/internal/logging"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// IDGen produces public identifiers for lending records.
type IDGen interface {
	New() (string, error)
}

// ulidGen issues monotonic ULIDs; the entropy source is shared so ids minted
// within one millisecond still sort in creation order.
type ulidGen struct {
	mu      sync.Mutex
	clock   Clock
	entropy io.Reader
}

func newULIDGen(clock Clock) *ulidGen {
	return &ulidGen{clock: clock, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGen) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(g.clock.Now()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// BorrowerRegistry answers whether a borrower reference is known. It is
// consulted before a borrow when configured.
type BorrowerRegistry interface {
	Exists(ctx context.Context, ref BorrowerRef) (bool, error)
}

// FineCalculator computes the fine owed at return.
type FineCalculator interface {
	Compute(condition Condition, lateness time.Duration) int64
}

type options struct {
	clock    Clock
	ids      IDGen
	logger   *slog.Logger
	registry BorrowerRegistry
}

// Option customizes a Catalog or Ledger.
type Option func(*options)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGen overrides lending record id generation.
func WithIDGen(ids IDGen) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBorrowerRegistry enables borrower pre-validation on borrow.
func WithBorrowerRegistry(registry BorrowerRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

func buildOptions(component string, opts []Option) options {
	o := options{clock: systemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ids == nil {
		o.ids = newULIDGen(o.clock)
	}
	o.logger = logging.NewComponentLogger(o.logger, component)
	return o
}
