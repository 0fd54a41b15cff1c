package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"lendkeeper/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LENDKEEPER_DATA_DIR", "")
	t.Setenv("LENDKEEPER_LOG_LEVEL", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "lendkeeper")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "lendkeeper.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Ledger.BorrowerMismatch != config.MismatchStrict {
		t.Fatalf("expected strict mismatch policy by default, got %q", cfg.Ledger.BorrowerMismatch)
	}
	if cfg.Bulk.Policy != config.BulkPolicyBestEffort {
		t.Fatalf("expected best-effort bulk policy by default, got %q", cfg.Bulk.Policy)
	}
	if cfg.Bulk.Workers != 1 {
		t.Fatalf("expected single bulk worker by default, got %d", cfg.Bulk.Workers)
	}
	if got := cfg.LoanPeriod("standard"); got != 14*24*time.Hour {
		t.Fatalf("unexpected standard loan period: %v", got)
	}
	if got := cfg.LoanPeriod("revision"); got != 7*24*time.Hour {
		t.Fatalf("unexpected revision loan period: %v", got)
	}
	if got := cfg.LoanPeriod("furniture"); got != 120*24*time.Hour {
		t.Fatalf("unexpected furniture loan period: %v", got)
	}
}

func TestLoadCustomConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("LENDKEEPER_DATA_DIR", "")
	t.Setenv("LENDKEEPER_LOG_LEVEL", "")

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
data_dir = "~/lending"
roster_file = "~/roster.yaml"

[ledger]
borrower_mismatch = " WARN "
validate_borrowers = true

[bulk]
workers = 4
policy = "stop-on-failure"

[overdue]
bucket_edges_days = [30, 7, 7, 14]

[fines]
damaged = 750
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "lending") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.RosterFile != filepath.Join(tempHome, "roster.yaml") {
		t.Fatalf("unexpected roster file: %q", cfg.Paths.RosterFile)
	}
	if cfg.Ledger.BorrowerMismatch != config.MismatchWarn {
		t.Fatalf("expected normalized mismatch policy, got %q", cfg.Ledger.BorrowerMismatch)
	}
	if cfg.Bulk.Policy != config.BulkPolicyStopOnFailure {
		t.Fatalf("expected normalized bulk policy, got %q", cfg.Bulk.Policy)
	}
	if cfg.Bulk.Workers != 4 {
		t.Fatalf("expected 4 workers, got %d", cfg.Bulk.Workers)
	}
	want := []int{7, 14, 30}
	if len(cfg.Overdue.BucketEdgesDays) != len(want) {
		t.Fatalf("unexpected bucket edges: %v", cfg.Overdue.BucketEdgesDays)
	}
	for i := range want {
		if cfg.Overdue.BucketEdgesDays[i] != want[i] {
			t.Fatalf("unexpected bucket edges: %v", cfg.Overdue.BucketEdgesDays)
		}
	}
	if cfg.Fines.Damaged != 750 {
		t.Fatalf("expected damaged fine override, got %d", cfg.Fines.Damaged)
	}
	if cfg.Fines.Lost != config.Default().Fines.Lost {
		t.Fatalf("expected lost fine default to survive partial override, got %d", cfg.Fines.Lost)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[loans]\nfortnight = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestEnvOverridesDataDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	override := t.TempDir()
	t.Setenv("LENDKEEPER_DATA_DIR", override)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != override {
		t.Fatalf("expected env data dir %q, got %q", override, cfg.Paths.DataDir)
	}
}

func TestValidateRejectsBadPolicies(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"mismatch", func(c *config.Config) { c.Ledger.BorrowerMismatch = "lenient" }, "ledger.borrower_mismatch"},
		{"bulk policy", func(c *config.Config) { c.Bulk.Policy = "all_or_nothing" }, "bulk.policy"},
		{"workers", func(c *config.Config) { c.Bulk.Workers = 0 }, "bulk.workers"},
		{"negative fine", func(c *config.Config) { c.Fines.Lost = -1 }, "fines.lost"},
		{"loan days", func(c *config.Config) { c.Loans.RevisionDays = 0 }, "loans.revision_days"},
		{"roster required", func(c *config.Config) { c.Ledger.ValidateBorrowers = true }, "paths.roster_file"},
		{"bucket edge", func(c *config.Config) { c.Overdue.BucketEdgesDays = []int{0} }, "overdue.bucket_edges_days"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = t.TempDir()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("LENDKEEPER_DATA_DIR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if decoded.Fines.Lost != config.Default().Fines.Lost {
		t.Fatalf("sample lost fine %d does not match default %d", decoded.Fines.Lost, config.Default().Fines.Lost)
	}

	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
}
