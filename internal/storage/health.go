package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// DatabaseHealth captures diagnostic information about the lending database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	SchemaCurrent    bool
	IntegrityCheck   bool
	ForeignKeys      bool
	Resources        int
	OpenLoans        int
	Error            string
}

// CheckHealth returns diagnostic information about the lending database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	version, err := s.SchemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version
	health.SchemaCurrent = version == schemaVersion

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA quick_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = integrity
	}

	var foreignKeys int
	if err := s.db.QueryRowContext(connCtx, "PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("foreign key pragma: %w", err)
	}
	health.ForeignKeys = foreignKeys == 1

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM resources").Scan(&health.Resources); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count resources: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx,
		"SELECT COUNT(1) FROM lending_records WHERE returned_at IS NULL",
	).Scan(&health.OpenLoans); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count open loans: %w", err)
	}
	return health, nil
}
