package fines_test

import (
	"testing"
	"time"

	"lendkeeper/internal/config"
	"lendkeeper/internal/fines"
	"lendkeeper/internal/inventory"
)

func TestLateDaysCountsStartedDays(t *testing.T) {
	cases := []struct {
		lateness time.Duration
		want     int
	}{
		{-time.Hour, 0},
		{0, 0},
		{time.Second, 1},
		{24 * time.Hour, 1},
		{24*time.Hour + time.Second, 2},
		{5*24*time.Hour + 3*time.Hour, 6},
	}
	for _, tc := range cases {
		if got := fines.LateDays(tc.lateness); got != tc.want {
			t.Fatalf("LateDays(%v) = %d, want %d", tc.lateness, got, tc.want)
		}
	}
}

func TestComputeUsesDefaultTable(t *testing.T) {
	calc := fines.New(config.Default().Fines)

	if got := calc.Compute(inventory.ConditionGood, -time.Hour); got != 0 {
		t.Fatalf("expected no fine for early good return, got %d", got)
	}
	if got := calc.Compute(inventory.ConditionFair, 0); got != 50 {
		t.Fatalf("expected fair fine 50, got %d", got)
	}
	// Damaged and five days three hours late: 500 + 6 * 10.
	if got := calc.Compute(inventory.ConditionDamaged, 5*24*time.Hour+3*time.Hour); got != 560 {
		t.Fatalf("expected 560, got %d", got)
	}
	if got := calc.Compute(inventory.ConditionLost, 0); got != 2000 {
		t.Fatalf("expected lost fine 2000, got %d", got)
	}
}

func TestLateFeeCap(t *testing.T) {
	table := config.Default().Fines
	table.MaxLateFee = 100
	calc := fines.New(table)

	if got := calc.LateFee(30 * 24 * time.Hour); got != 100 {
		t.Fatalf("expected capped late fee 100, got %d", got)
	}
	if got := calc.LateFee(3 * 24 * time.Hour); got != 30 {
		t.Fatalf("expected uncapped late fee 30, got %d", got)
	}
}
