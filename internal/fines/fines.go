package fines

import (
	"time"

	"lendkeeper/internal/config"
	"lendkeeper/internal/inventory"
)

const day = 24 * time.Hour

// Calculator applies a fine table. It is immutable and safe for concurrent use.
type Calculator struct {
	byCondition map[inventory.Condition]int64
	perDayLate  int64
	maxLateFee  int64
}

// New builds a calculator from the fines config section.
func New(table config.Fines) *Calculator {
	return &Calculator{
		byCondition: map[inventory.Condition]int64{
			inventory.ConditionNew:     table.New,
			inventory.ConditionGood:    table.Good,
			inventory.ConditionFair:    table.Fair,
			inventory.ConditionDamaged: table.Damaged,
			inventory.ConditionLost:    table.Lost,
		},
		perDayLate: table.PerDayLate,
		maxLateFee: table.MaxLateFee,
	}
}

// Compute returns the fine for a return in condition, lateness after the due
// date. Non-positive lateness adds no surcharge.
func (c *Calculator) Compute(condition inventory.Condition, lateness time.Duration) int64 {
	return c.ConditionFee(condition) + c.LateFee(lateness)
}

// ConditionFee returns the table entry for condition; unknown conditions cost
// nothing.
func (c *Calculator) ConditionFee(condition inventory.Condition) int64 {
	return c.byCondition[condition]
}

// LateFee returns the capped per-day surcharge for lateness.
func (c *Calculator) LateFee(lateness time.Duration) int64 {
	fee := int64(LateDays(lateness)) * c.perDayLate
	if c.maxLateFee > 0 && fee > c.maxLateFee {
		return c.maxLateFee
	}
	return fee
}

// LateDays counts started days of lateness: one second late is one day.
func LateDays(lateness time.Duration) int {
	if lateness <= 0 {
		return 0
	}
	days := lateness / day
	if lateness%day != 0 {
		days++
	}
	return int(days)
}

var _ inventory.FineCalculator = (*Calculator)(nil)
