package overdue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"lendkeeper/internal/fines"
	"lendkeeper/internal/inventory"
	"lendkeeper/internal/logging"
)

// RecordSource yields open lending records. *inventory.Ledger satisfies it.
type RecordSource interface {
	OpenRecords(ctx context.Context, f inventory.OpenFilter) iter.Seq2[inventory.LendingRecord, error]
}

// Scanner finds overdue loans.
type Scanner struct {
	records RecordSource
	fines   *fines.Calculator
	logger  *slog.Logger
}

// NewScanner builds a scanner over records. calc may be nil, in which case
// entries carry no accrued fee.
func NewScanner(records RecordSource, calc *fines.Calculator, logger *slog.Logger) *Scanner {
	return &Scanner{
		records: records,
		fines:   calc,
		logger:  logging.NewComponentLogger(logger, "overdue"),
	}
}

// FindOverdue yields open records with due_at strictly before asOf, earliest
// due first.
func (s *Scanner) FindOverdue(ctx context.Context, asOf time.Time) iter.Seq2[inventory.LendingRecord, error] {
	asOf = asOf.UTC()
	return s.records.OpenRecords(ctx, inventory.OpenFilter{DueBefore: &asOf})
}

// Entry is an overdue record annotated with its lateness.
type Entry struct {
	Record         inventory.LendingRecord `json:"record"`
	DaysLate       int                     `json:"days_late"`
	AccruedLateFee int64                   `json:"accrued_late_fee"`
}

// Entries materializes FindOverdue with lateness and the late fee accrued so
// far.
func (s *Scanner) Entries(ctx context.Context, asOf time.Time) ([]Entry, error) {
	var out []Entry
	for rec, err := range s.FindOverdue(ctx, asOf) {
		if err != nil {
			return nil, err
		}
		lateness := rec.Lateness(asOf)
		entry := Entry{Record: rec, DaysLate: fines.LateDays(lateness)}
		if s.fines != nil {
			entry.AccruedLateFee = s.fines.LateFee(lateness)
		}
		out = append(out, entry)
	}
	s.logger.Debug("overdue scan complete",
		logging.Int("overdue", len(out)),
		logging.Time("as_of", asOf),
	)
	return out, nil
}

// Bucket is an inclusive range of days late. MaxDays 0 means unbounded.
type Bucket struct {
	MinDays int `json:"min_days"`
	MaxDays int `json:"max_days,omitempty"`
}

// Label renders the bucket as "1-7" or ">30".
func (b Bucket) Label() string {
	if b.MaxDays == 0 {
		return fmt.Sprintf(">%d", b.MinDays-1)
	}
	return fmt.Sprintf("%d-%d", b.MinDays, b.MaxDays)
}

func (b Bucket) contains(days int) bool {
	return days >= b.MinDays && (b.MaxDays == 0 || days <= b.MaxDays)
}

// BucketsFromEdges turns ascending upper edges into contiguous buckets.
// Edges [7 30] give 1-7, 8-30 and >30.
func BucketsFromEdges(edges []int) []Bucket {
	buckets := make([]Bucket, 0, len(edges)+1)
	lower := 1
	for _, edge := range edges {
		if edge < lower {
			continue
		}
		buckets = append(buckets, Bucket{MinDays: lower, MaxDays: edge})
		lower = edge + 1
	}
	return append(buckets, Bucket{MinDays: lower})
}

// BucketCount is the number of overdue records in one bucket.
type BucketCount struct {
	Bucket Bucket `json:"bucket"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// GroupByLateness counts overdue records per bucket. Every bucket appears in
// the result, in the order given, even when empty.
func (s *Scanner) GroupByLateness(ctx context.Context, asOf time.Time, buckets []Bucket) ([]BucketCount, error) {
	if len(buckets) == 0 {
		return nil, errors.New("at least one lateness bucket is required")
	}
	counts := make([]BucketCount, len(buckets))
	for i, b := range buckets {
		counts[i] = BucketCount{Bucket: b, Label: b.Label()}
	}
	for rec, err := range s.FindOverdue(ctx, asOf) {
		if err != nil {
			return nil, err
		}
		days := fines.LateDays(rec.Lateness(asOf))
		for i := range counts {
			if counts[i].Bucket.contains(days) {
				counts[i].Count++
				break
			}
		}
	}
	return counts, nil
}
