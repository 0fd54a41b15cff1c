package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"lendkeeper/internal/registry"
	"lendkeeper/internal/storage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckRoster verifies that the roster file parses and reports its size.
func CheckRoster(ctx context.Context, path string) Result {
	const name = "Roster"

	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	roster, err := registry.LoadFile(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	cohorts, err := roster.Cohorts(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	members := 0
	for _, c := range cohorts {
		members += len(c.Members)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d cohorts, %d borrowers)", path, len(cohorts), members)}
}

// CheckDatabase runs the store health check and folds it into one result.
func CheckDatabase(ctx context.Context, store *storage.Store) Result {
	const name = "Database"

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	switch {
	case !health.DatabaseExists:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", health.DBPath)}
	case !health.SchemaCurrent:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: schema version %d)", health.DBPath, health.SchemaVersion)}
	case !health.IntegrityCheck:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: integrity check: %s)", health.DBPath, health.Error)}
	case !health.ForeignKeys:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: foreign keys disabled)", health.DBPath)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d resources, %d open loans)",
		health.DBPath, health.Resources, health.OpenLoans)}
}
