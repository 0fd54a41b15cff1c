package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data and roster locations.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	RosterFile string `toml:"roster_file"`
}

// Storage tunes the SQLite connection.
type Storage struct {
	BusyTimeoutMS     int `toml:"busy_timeout_ms"`
	BusyRetryAttempts int `toml:"busy_retry_attempts"`
}

// Loans holds default loan periods in days, keyed by resource type.
type Loans struct {
	DefaultDays   int `toml:"default_days"`
	RevisionDays  int `toml:"revision_days"`
	FurnitureDays int `toml:"furniture_days"`
}

// Fines holds the fine table in minor currency units.
type Fines struct {
	New        int64 `toml:"new"`
	Good       int64 `toml:"good"`
	Fair       int64 `toml:"fair"`
	Damaged    int64 `toml:"damaged"`
	Lost       int64 `toml:"lost"`
	PerDayLate int64 `toml:"per_day_late"`
	MaxLateFee int64 `toml:"max_late_fee"`
}

// Ledger contains lending policy switches.
type Ledger struct {
	// BorrowerMismatch is "strict" (reject) or "warn" (log and proceed).
	BorrowerMismatch  string `toml:"borrower_mismatch"`
	ValidateBorrowers bool   `toml:"validate_borrowers"`
}

// Bulk configures the bulk transaction coordinator.
type Bulk struct {
	Workers int    `toml:"workers"`
	Policy  string `toml:"policy"`
}

// Overdue configures lateness reporting.
type Overdue struct {
	BucketEdgesDays []int `toml:"bucket_edges_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lendkeeper.
//
// Configuration sections by subsystem:
//   - Paths: database directory, log directory and roster file
//   - Storage: SQLite busy handling
//   - Loans: default loan periods per resource type
//   - Fines: fine table and lateness surcharge
//   - Ledger: borrower checks on borrow and return
//   - Bulk: worker count and failure policy
//   - Overdue: lateness report buckets
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Storage Storage `toml:"storage"`
	Loans   Loans   `toml:"loans"`
	Fines   Fines   `toml:"fines"`
	Ledger  Ledger  `toml:"ledger"`
	Bulk    Bulk    `toml:"bulk"`
	Overdue Overdue `toml:"overdue"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lendkeeper.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, databaseFileName)
}

// LockPath returns the file lock guarding schema initialization.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, lockFileName)
}

// LoanPeriod returns the default loan period for a resource type name.
// Unknown types fall back to loans.default_days.
func (c *Config) LoanPeriod(resourceType string) time.Duration {
	days := c.Loans.DefaultDays
	switch resourceType {
	case "revision":
		days = c.Loans.RevisionDays
	case "furniture":
		days = c.Loans.FurnitureDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// BusyTimeout returns the SQLite busy timeout as a duration.
func (c *Config) BusyTimeout() time.Duration {
	return time.Duration(c.Storage.BusyTimeoutMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
