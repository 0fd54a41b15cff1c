package inventory

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ResourceType tags what kind of lendable unit a resource is.
type ResourceType string

const (
	TypeStandard  ResourceType = "standard"
	TypeRevision  ResourceType = "revision"
	TypeFurniture ResourceType = "furniture"
)

// Valid reports whether the type is one of the known tags.
func (t ResourceType) Valid() bool {
	switch t {
	case TypeStandard, TypeRevision, TypeFurniture:
		return true
	}
	return false
}

// ParseResourceType accepts a type tag in any case.
func ParseResourceType(value string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", newError(KindValidation, fmt.Sprintf("unknown resource type %q", value))
	}
	return t, nil
}

// Condition is the physical state of a resource.
type Condition string

const (
	ConditionNew     Condition = "New"
	ConditionGood    Condition = "Good"
	ConditionFair    Condition = "Fair"
	ConditionDamaged Condition = "Damaged"
	ConditionLost    Condition = "Lost"
)

// Conditions lists every condition in ascending order of wear.
var Conditions = []Condition{ConditionNew, ConditionGood, ConditionFair, ConditionDamaged, ConditionLost}

// Valid reports whether the condition is one of the known values.
func (c Condition) Valid() bool {
	switch c {
	case ConditionNew, ConditionGood, ConditionFair, ConditionDamaged, ConditionLost:
		return true
	}
	return false
}

// ParseCondition accepts a condition in any case ("damaged", "DAMAGED").
func ParseCondition(value string) (Condition, error) {
	// Casers keep state, so each call gets its own.
	c := Condition(cases.Title(language.English).String(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", newError(KindValidation, fmt.Sprintf("unknown condition %q", value))
	}
	return c, nil
}

// Dimension names one classification field. Consumers always choose a
// dimension explicitly; there is no fallback from one field to another.
type Dimension string

const (
	DimensionCategory          Dimension = "category"
	DimensionSubject           Dimension = "subject"
	DimensionClassLevel        Dimension = "class_level"
	DimensionFurnitureCategory Dimension = "furniture_category"
)

// Unclassified is the tag reported for resources lacking the chosen dimension.
const Unclassified = "unclassified"

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionCategory, DimensionSubject, DimensionClassLevel, DimensionFurnitureCategory:
		return true
	}
	return false
}

// ParseDimension accepts a dimension name, allowing "-" for "_".
func ParseDimension(value string) (Dimension, error) {
	d := Dimension(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	if !d.Valid() {
		return "", newError(KindValidation, fmt.Sprintf("unknown classification dimension %q", value))
	}
	return d, nil
}

// column maps the dimension onto its resources column.
func (d Dimension) column() string {
	return string(d)
}

// Classification holds the optional grouping tags of a resource.
type Classification struct {
	Category          string `json:"category,omitempty" yaml:"category,omitempty"`
	Subject           string `json:"subject,omitempty" yaml:"subject,omitempty"`
	ClassLevel        string `json:"class_level,omitempty" yaml:"class_level,omitempty"`
	FurnitureCategory string `json:"furniture_category,omitempty" yaml:"furniture_category,omitempty"`
}

// Tag returns the value stored for d, or "" when absent.
func (c Classification) Tag(d Dimension) string {
	switch d {
	case DimensionCategory:
		return c.Category
	case DimensionSubject:
		return c.Subject
	case DimensionClassLevel:
		return c.ClassLevel
	case DimensionFurnitureCategory:
		return c.FurnitureCategory
	}
	return ""
}

func (c Classification) normalized() Classification {
	return Classification{
		Category:          normalizeTag(c.Category),
		Subject:           normalizeTag(c.Subject),
		ClassLevel:        normalizeTag(c.ClassLevel),
		FurnitureCategory: normalizeTag(c.FurnitureCategory),
	}
}

// normalizeTag collapses whitespace and case-folds, so "Mathematics" and
// " mathematics " name the same tag.
func normalizeTag(value string) string {
	// Casers keep state, so each call gets its own.
	return cases.Fold().String(strings.Join(strings.Fields(value), " "))
}

// Resource is a lendable unit tracked by the catalog.
type Resource struct {
	ID             string         `json:"id" validate:"required,resourceid"`
	Type           ResourceType   `json:"type" validate:"required,oneof=standard revision furniture"`
	Title          string         `json:"title,omitempty" validate:"max=256"`
	Classification Classification `json:"classification"`
	Condition      Condition      `json:"condition" validate:"required,oneof=New Good Fair Damaged Lost"`
	Available      bool           `json:"available"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// BorrowerKind distinguishes student and teacher borrowers.
type BorrowerKind string

const (
	BorrowerStudent BorrowerKind = "student"
	BorrowerTeacher BorrowerKind = "teacher"
)

// BorrowerRef is an opaque reference to a borrower. Identity management lives
// outside the engine.
type BorrowerRef struct {
	ID   string       `json:"id" validate:"required,max=64"`
	Kind BorrowerKind `json:"kind" validate:"required,oneof=student teacher"`
}

// IsZero reports whether no borrower was supplied.
func (b BorrowerRef) IsZero() bool {
	return b.ID == "" && b.Kind == ""
}

func (b BorrowerRef) String() string {
	if b.IsZero() {
		return ""
	}
	return string(b.Kind) + ":" + b.ID
}

// ParseBorrowerKind accepts a borrower kind in any case.
func ParseBorrowerKind(value string) (BorrowerKind, error) {
	k := BorrowerKind(strings.ToLower(strings.TrimSpace(value)))
	switch k {
	case BorrowerStudent, BorrowerTeacher:
		return k, nil
	}
	return "", newError(KindValidation, fmt.Sprintf("unknown borrower kind %q", value))
}

// LendingRecord is one custody event. It is open while ReturnedAt is nil and
// becomes immutable once closed.
type LendingRecord struct {
	ID              int64       `json:"id"`
	ULID            string      `json:"ulid"`
	ResourceID      string      `json:"resource_id"`
	Borrower        BorrowerRef `json:"borrower"`
	BorrowedAt      time.Time   `json:"borrowed_at"`
	DueAt           time.Time   `json:"due_at"`
	ReturnedAt      *time.Time  `json:"returned_at,omitempty"`
	ReturnCondition Condition   `json:"return_condition,omitempty"`
	FineMinor       int64       `json:"fine_minor"`
	LentBy          string      `json:"lent_by,omitempty"`
	ReturnedBy      string      `json:"returned_by,omitempty"`
	Note            string      `json:"note,omitempty"`
}

// Open reports whether the record still holds custody.
func (r LendingRecord) Open() bool {
	return r.ReturnedAt == nil
}

// Lateness returns how far past due the record is at asOf (or at return for
// closed records). Non-positive values mean on time.
func (r LendingRecord) Lateness(asOf time.Time) time.Duration {
	end := asOf
	if r.ReturnedAt != nil {
		end = *r.ReturnedAt
	}
	return end.Sub(r.DueAt)
}
