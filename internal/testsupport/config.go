package testsupport

import (
	"path/filepath"
	"testing"

	"lendkeeper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithMismatchPolicy sets ledger.borrower_mismatch.
func WithMismatchPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.BorrowerMismatch = policy
	}
}

// WithBulk sets the bulk worker count and policy.
func WithBulk(workers int, policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bulk.Workers = workers
		b.cfg.Bulk.Policy = policy
	}
}

// WithRoster points paths.roster_file at a file under the test directory and
// enables borrower validation.
func WithRoster(content string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "roster.yaml")
		WriteFile(b.t, path, content)
		b.cfg.Paths.RosterFile = path
		b.cfg.Ledger.ValidateBorrowers = true
	}
}

// WithBusyRetry shortens the SQLite busy timeout and sets the retry budget.
func WithBusyRetry(timeoutMS, attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.BusyTimeoutMS = timeoutMS
		b.cfg.Storage.BusyRetryAttempts = attempts
	}
}
