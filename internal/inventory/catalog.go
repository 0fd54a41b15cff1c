package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"lendkeeper/internal/logging"
	"lendkeeper/internal/storage"
)

// Catalog is the authoritative registry of lendable resources. Availability
// is written only through setAvailability, which the Ledger calls inside its
// own transactions.
type Catalog struct {
	store  *storage.Store
	clock  Clock
	logger *slog.Logger
}

// NewCatalog wires a catalog to the shared store.
func NewCatalog(store *storage.Store, opts ...Option) *Catalog {
	o := buildOptions("catalog", opts)
	return &Catalog{store: store, clock: o.clock, logger: o.logger}
}

// Register adds a resource. Availability always starts true regardless of the
// supplied value; a missing condition defaults to New.
func (c *Catalog) Register(ctx context.Context, r Resource) (string, error) {
	r = prepareResource(r)
	if err := validateStruct(r, r.ID); err != nil {
		return "", err
	}

	now := c.clock.Now()
	r.Available = true
	r.CreatedAt = now
	r.UpdatedAt = now

	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resources (`+resourceColumnList+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID,
			string(r.Type),
			r.Title,
			storage.NullableString(r.Classification.Category),
			storage.NullableString(r.Classification.Subject),
			storage.NullableString(r.Classification.ClassLevel),
			storage.NullableString(r.Classification.FurnitureCategory),
			string(r.Condition),
			storage.BoolToInt(r.Available),
			storage.FormatTime(r.CreatedAt),
			storage.FormatTime(r.UpdatedAt),
		)
		if storage.IsUniqueViolation(err) {
			return resourceError(KindDuplicateIdentifier, r.ID, "resource already registered")
		}
		return err
	})
	if err != nil {
		return "", classifyStorage("register resource", err)
	}

	c.logger.Debug("resource registered",
		logging.String(logging.FieldResourceID, r.ID),
		logging.String("type", string(r.Type)),
	)
	return r.ID, nil
}

// RegisterOutcome reports the result of one RegisterMany row.
type RegisterOutcome struct {
	Index      int
	ResourceID string
	Err        error
}

// RegisterMany registers each resource independently. A failing row does not
// stop later rows; rows left when ctx is cancelled report KindCancelled.
func (c *Catalog) RegisterMany(ctx context.Context, resources []Resource) []RegisterOutcome {
	outcomes := make([]RegisterOutcome, len(resources))
	for i, r := range resources {
		outcomes[i] = RegisterOutcome{Index: i, ResourceID: r.ID}
		if ctx.Err() != nil {
			outcomes[i].Err = &Error{Kind: KindCancelled, ResourceID: r.ID, Message: "not attempted", Err: ctx.Err()}
			continue
		}
		id, err := c.Register(ctx, r)
		if id != "" {
			outcomes[i].ResourceID = id
		}
		outcomes[i].Err = err
	}
	return outcomes
}

// Get returns the resource with id.
func (c *Catalog) Get(ctx context.Context, id string) (Resource, error) {
	row := c.store.DB().QueryRowContext(ctx,
		`SELECT `+resourceColumnList+` FROM resources WHERE id = ?`, id)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, resourceError(KindResourceNotFound, id, "no such resource")
	}
	if err != nil {
		return Resource{}, classifyStorage("get resource", err)
	}
	return res, nil
}

func (c *Catalog) getTx(ctx context.Context, tx *sql.Tx, id string) (Resource, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+resourceColumnList+` FROM resources WHERE id = ?`, id)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, resourceError(KindResourceNotFound, id, "no such resource")
	}
	if err != nil {
		return Resource{}, fmt.Errorf("load resource %s: %w", id, err)
	}
	return res, nil
}

// setAvailability flips the derived availability flag. Only the Ledger calls
// this, always inside the transaction that opens or closes a record.
func (c *Catalog) setAvailability(ctx context.Context, tx *sql.Tx, id string, available bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE resources SET available = ?, updated_at = ? WHERE id = ?`,
		storage.BoolToInt(available), storage.FormatTime(c.clock.Now()), id)
	if err != nil {
		return fmt.Errorf("set availability for %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set availability for %s: %w", id, err)
	}
	if affected == 0 {
		return resourceError(KindResourceNotFound, id, "no such resource")
	}
	return nil
}

// Edit describes an explicit change to a resource's descriptive fields. Nil
// fields are left untouched.
type Edit struct {
	Title          *string
	Classification *Classification
	Condition      *Condition
}

// UpdateDetails applies an explicit edit of title, classification or
// condition. Availability cannot be edited.
func (c *Catalog) UpdateDetails(ctx context.Context, id string, edit Edit) (Resource, error) {
	var updated Resource
	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := c.getTx(ctx, tx, id)
		if err != nil {
			return err
		}
		next := current
		if edit.Title != nil {
			next.Title = *edit.Title
		}
		if edit.Classification != nil {
			next.Classification = *edit.Classification
		}
		if edit.Condition != nil {
			next.Condition = *edit.Condition
		}
		next = prepareResource(next)
		if err := validateStruct(next, id); err != nil {
			return err
		}
		next.UpdatedAt = c.clock.Now()

		_, err = tx.ExecContext(ctx,
			`UPDATE resources SET title = ?, category = ?, subject = ?, class_level = ?,
				furniture_category = ?, condition = ?, updated_at = ? WHERE id = ?`,
			next.Title,
			storage.NullableString(next.Classification.Category),
			storage.NullableString(next.Classification.Subject),
			storage.NullableString(next.Classification.ClassLevel),
			storage.NullableString(next.Classification.FurnitureCategory),
			string(next.Condition),
			storage.FormatTime(next.UpdatedAt),
			id,
		)
		if err != nil {
			return fmt.Errorf("update resource %s: %w", id, err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return Resource{}, classifyStorage("update resource", err)
	}
	return updated, nil
}

// RemoveOptions controls Remove.
type RemoveOptions struct {
	// Force deletes a resource even while it is on loan; its open record is
	// removed with the rest of its history.
	Force bool
}

// Remove deletes a resource and cascades to its lending history. The open
// loan check and the delete share one transaction.
func (c *Catalog) Remove(ctx context.Context, id string, opts RemoveOptions) error {
	var history int64
	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := c.getTx(ctx, tx, id); err != nil {
			return err
		}
		open, err := openRecordTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if open != nil && !opts.Force {
			return resourceError(KindResourceHasOpenLoan, id, "on loan to %s since %s",
				open.Borrower, open.BorrowedAt.Format("2006-01-02"))
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM lending_records WHERE resource_id = ?`, id,
		).Scan(&history); err != nil {
			return fmt.Errorf("count history for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete resource %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return classifyStorage("remove resource", err)
	}
	c.logger.Info("resource removed",
		logging.String(logging.FieldResourceID, id),
		logging.Int64("history_records", history),
		logging.Bool("forced", opts.Force),
	)
	return nil
}
