package inventory

import (
	"database/sql"
	"fmt"

	"lendkeeper/internal/storage"
)

var resourceColumns = []any{
	"id", "type", "title", "category", "subject", "class_level",
	"furniture_category", "condition", "available", "created_at", "updated_at",
}

var recordColumns = []any{
	"id", "ulid", "resource_id", "borrower_id", "borrower_kind", "borrowed_at",
	"due_at", "returned_at", "return_condition", "fine_minor", "lent_by",
	"returned_by", "note",
}

const recordColumnList = "id, ulid, resource_id, borrower_id, borrower_kind, borrowed_at, due_at, returned_at, return_condition, fine_minor, lent_by, returned_by, note"

const resourceColumnList = "id, type, title, category, subject, class_level, furniture_category, condition, available, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(scanner rowScanner) (Resource, error) {
	var (
		res               Resource
		typ               string
		category          sql.NullString
		subject           sql.NullString
		classLevel        sql.NullString
		furnitureCategory sql.NullString
		condition         string
		available         int
		createdRaw        string
		updatedRaw        string
	)
	if err := scanner.Scan(
		&res.ID,
		&typ,
		&res.Title,
		&category,
		&subject,
		&classLevel,
		&furnitureCategory,
		&condition,
		&available,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return Resource{}, err
	}
	res.Type = ResourceType(typ)
	res.Condition = Condition(condition)
	res.Available = available != 0
	res.Classification = Classification{
		Category:          category.String,
		Subject:           subject.String,
		ClassLevel:        classLevel.String,
		FurnitureCategory: furnitureCategory.String,
	}
	var err error
	if res.CreatedAt, err = storage.ParseTime(createdRaw); err != nil {
		return Resource{}, fmt.Errorf("resource %s created_at: %w", res.ID, err)
	}
	if res.UpdatedAt, err = storage.ParseTime(updatedRaw); err != nil {
		return Resource{}, fmt.Errorf("resource %s updated_at: %w", res.ID, err)
	}
	return res, nil
}

func scanRecord(scanner rowScanner) (LendingRecord, error) {
	var (
		rec             LendingRecord
		kind            string
		borrowedRaw     string
		dueRaw          string
		returnedRaw     sql.NullString
		returnCondition sql.NullString
		lentBy          sql.NullString
		returnedBy      sql.NullString
		note            sql.NullString
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.ULID,
		&rec.ResourceID,
		&rec.Borrower.ID,
		&kind,
		&borrowedRaw,
		&dueRaw,
		&returnedRaw,
		&returnCondition,
		&rec.FineMinor,
		&lentBy,
		&returnedBy,
		&note,
	); err != nil {
		return LendingRecord{}, err
	}
	rec.Borrower.Kind = BorrowerKind(kind)
	rec.ReturnCondition = Condition(returnCondition.String)
	rec.LentBy = lentBy.String
	rec.ReturnedBy = returnedBy.String
	rec.Note = note.String

	var err error
	if rec.BorrowedAt, err = storage.ParseTime(borrowedRaw); err != nil {
		return LendingRecord{}, fmt.Errorf("record %s borrowed_at: %w", rec.ULID, err)
	}
	if rec.DueAt, err = storage.ParseTime(dueRaw); err != nil {
		return LendingRecord{}, fmt.Errorf("record %s due_at: %w", rec.ULID, err)
	}
	if rec.ReturnedAt, err = storage.ParseNullTime(returnedRaw); err != nil {
		return LendingRecord{}, fmt.Errorf("record %s returned_at: %w", rec.ULID, err)
	}
	return rec, nil
}
