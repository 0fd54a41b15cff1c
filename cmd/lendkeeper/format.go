package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lendkeeper/internal/inventory"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// parseInstant accepts a calendar date (midnight UTC) or an RFC 3339 time.
func parseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, &inventory.Error{
			Kind:    inventory.KindValidation,
			Message: fmt.Sprintf("invalid time %q (use YYYY-MM-DD or RFC 3339)", value),
		}
	}
	return t.UTC(), nil
}

// parseTags turns dim=value pairs into a classification filter.
func parseTags(pairs []string) (map[inventory.Dimension]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[inventory.Dimension]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, &inventory.Error{
				Kind:    inventory.KindValidation,
				Message: fmt.Sprintf("tag filter %q must look like dimension=value", pair),
			}
		}
		dim, err := inventory.ParseDimension(key)
		if err != nil {
			return nil, err
		}
		tags[dim] = value
	}
	return tags, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(dateTimeLayout)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// formatMoney renders minor units as a decimal amount.
func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func formatPercent(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64) + "%"
}

func classificationSummary(c inventory.Classification) string {
	var parts []string
	for _, dim := range []inventory.Dimension{
		inventory.DimensionCategory,
		inventory.DimensionSubject,
		inventory.DimensionClassLevel,
		inventory.DimensionFurnitureCategory,
	} {
		if tag := c.Tag(dim); tag != "" {
			parts = append(parts, string(dim)+"="+tag)
		}
	}
	return strings.Join(parts, ", ")
}

func recordStatus(r inventory.LendingRecord) string {
	if r.Open() {
		return "open"
	}
	return "returned"
}

func recordRow(r inventory.LendingRecord) []string {
	return []string{
		r.ULID,
		r.ResourceID,
		r.Borrower.String(),
		formatTime(r.BorrowedAt),
		formatTime(r.DueAt),
		formatOptionalTime(r.ReturnedAt),
		string(r.ReturnCondition),
		formatMoney(r.FineMinor),
	}
}

var recordHeaders = []string{"Record", "Resource", "Borrower", "Borrowed", "Due", "Returned", "Condition", "Fine"}

var recordAligns = []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight}
