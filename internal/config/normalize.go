package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeLedger()
	c.normalizeBulk()
	c.normalizeOverdue()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("LENDKEEPER_DATA_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.RosterFile = strings.TrimSpace(c.Paths.RosterFile)
	if c.Paths.RosterFile != "" {
		if c.Paths.RosterFile, err = expandPath(c.Paths.RosterFile); err != nil {
			return fmt.Errorf("paths.roster_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStorage() {
	if c.Storage.BusyTimeoutMS <= 0 {
		c.Storage.BusyTimeoutMS = defaultBusyTimeoutMS
	}
	if c.Storage.BusyRetryAttempts <= 0 {
		c.Storage.BusyRetryAttempts = defaultBusyRetryAttempts
	}
}

func (c *Config) normalizeLedger() {
	c.Ledger.BorrowerMismatch = strings.ToLower(strings.TrimSpace(c.Ledger.BorrowerMismatch))
	if c.Ledger.BorrowerMismatch == "" {
		c.Ledger.BorrowerMismatch = defaultBorrowerMismatch
	}
}

func (c *Config) normalizeBulk() {
	c.Bulk.Policy = strings.ToLower(strings.TrimSpace(c.Bulk.Policy))
	c.Bulk.Policy = strings.ReplaceAll(c.Bulk.Policy, "-", "_")
	if c.Bulk.Policy == "" {
		c.Bulk.Policy = defaultBulkPolicy
	}
	if c.Bulk.Workers <= 0 {
		c.Bulk.Workers = defaultBulkWorkers
	}
}

func (c *Config) normalizeOverdue() {
	if len(c.Overdue.BucketEdgesDays) == 0 {
		c.Overdue.BucketEdgesDays = defaultBucketEdges()
		return
	}
	edges := slices.Clone(c.Overdue.BucketEdgesDays)
	slices.Sort(edges)
	c.Overdue.BucketEdgesDays = slices.Compact(edges)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if value, ok := os.LookupEnv("LENDKEEPER_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(value))
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
