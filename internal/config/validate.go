package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLoans(); err != nil {
		return err
	}
	if err := c.validateFines(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateBulk(); err != nil {
		return err
	}
	if err := c.validateOverdue(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Ledger.ValidateBorrowers && c.Paths.RosterFile == "" {
		return errors.New("paths.roster_file must be set when ledger.validate_borrowers is true")
	}
	return nil
}

func (c *Config) validateLoans() error {
	return ensurePositiveMap(map[string]int{
		"loans.default_days":   c.Loans.DefaultDays,
		"loans.revision_days":  c.Loans.RevisionDays,
		"loans.furniture_days": c.Loans.FurnitureDays,
	})
}

func (c *Config) validateFines() error {
	values := map[string]int64{
		"fines.new":          c.Fines.New,
		"fines.good":         c.Fines.Good,
		"fines.fair":         c.Fines.Fair,
		"fines.damaged":      c.Fines.Damaged,
		"fines.lost":         c.Fines.Lost,
		"fines.per_day_late": c.Fines.PerDayLate,
		"fines.max_late_fee": c.Fines.MaxLateFee,
	}
	for key, value := range values {
		if value < 0 {
			return fmt.Errorf("%s must be >= 0", key)
		}
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.BorrowerMismatch {
	case MismatchStrict, MismatchWarn:
		return nil
	default:
		return fmt.Errorf("ledger.borrower_mismatch: unsupported value %q (want %q or %q)", c.Ledger.BorrowerMismatch, MismatchStrict, MismatchWarn)
	}
}

func (c *Config) validateBulk() error {
	if c.Bulk.Workers <= 0 {
		return errors.New("bulk.workers must be positive")
	}
	switch c.Bulk.Policy {
	case BulkPolicyBestEffort, BulkPolicyStopOnFailure:
		return nil
	default:
		return fmt.Errorf("bulk.policy: unsupported value %q", c.Bulk.Policy)
	}
}

func (c *Config) validateOverdue() error {
	for _, edge := range c.Overdue.BucketEdgesDays {
		if edge <= 0 {
			return errors.New("overdue.bucket_edges_days must contain positive day counts")
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
