package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"lendkeeper/internal/inventory"
	"lendkeeper/internal/logging"
)

// Unassigned is the cohort reported for borrowers outside every cohort.
const Unassigned = "unassigned"

// Cohort is a named group of borrowers, such as a class stream.
type Cohort struct {
	ID      string                  `json:"id"`
	Name    string                  `json:"name,omitempty"`
	Members []inventory.BorrowerRef `json:"members"`
}

// CohortSource supplies cohort membership.
type CohortSource interface {
	Cohorts(ctx context.Context) ([]Cohort, error)
	CohortOf(ctx context.Context, ref inventory.BorrowerRef) (string, bool, error)
}

// CatalogReader is the catalog surface the aggregator reads.
type CatalogReader interface {
	Counts(ctx context.Context, f inventory.Filter) (inventory.Counts, error)
	CountsBy(ctx context.Context, dim inventory.Dimension, f inventory.Filter) ([]inventory.TagCount, error)
}

// LoanReader is the ledger surface the aggregator reads.
type LoanReader interface {
	LoanCounts(ctx context.Context, f inventory.LoanCountFilter) ([]inventory.BorrowerLoanCount, error)
}

// Aggregator computes reports.
type Aggregator struct {
	catalog CatalogReader
	loans   LoanReader
	cohorts CohortSource
	logger  *slog.Logger
}

// New builds an aggregator. cohorts may be nil when no roster is configured;
// cohort reports then fail with a validation error.
func New(catalog CatalogReader, loans LoanReader, cohorts CohortSource, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		catalog: catalog,
		loans:   loans,
		cohorts: cohorts,
		logger:  logging.NewComponentLogger(logger, "analytics"),
	}
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

// Summary is an inventory snapshot.
type Summary struct {
	inventory.Counts
	Utilization float64 `json:"utilization"`
}

// InventorySummary reports totals and utilization (borrowed / total × 100)
// for resources matching f.
func (a *Aggregator) InventorySummary(ctx context.Context, f inventory.Filter) (Summary, error) {
	counts, err := a.catalog.Counts(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Counts: counts, Utilization: percent(counts.Borrowed, counts.Total)}, nil
}

// Breakdown is one classification tag with its utilization.
type Breakdown struct {
	inventory.TagCount
	Utilization float64 `json:"utilization"`
}

// ClassificationBreakdown reports counts per tag of dim.
func (a *Aggregator) ClassificationBreakdown(ctx context.Context, dim inventory.Dimension) ([]Breakdown, error) {
	rows, err := a.catalog.CountsBy(ctx, dim, inventory.Filter{})
	if err != nil {
		return nil, err
	}
	out := make([]Breakdown, len(rows))
	for i, row := range rows {
		out[i] = Breakdown{TagCount: row, Utilization: percent(row.Borrowed, row.Total)}
	}
	return out, nil
}

// Participation describes how much of a cohort has borrowed anything.
type Participation struct {
	CohortID               string  `json:"cohort_id"`
	Name                   string  `json:"name,omitempty"`
	Members                int     `json:"members"`
	Participants           int     `json:"participants"`
	Rate                   float64 `json:"rate"`
	TotalLoans             int     `json:"total_loans"`
	AvgLoansPerParticipant float64 `json:"avg_loans_per_participant"`
}

// Participation reports the share of a cohort's members with at least one
// lending record, open or closed.
func (a *Aggregator) Participation(ctx context.Context, cohortID string) (Participation, error) {
	cohort, err := a.cohort(ctx, cohortID)
	if err != nil {
		return Participation{}, err
	}
	loans, err := a.loansByBorrower(ctx, inventory.LoanCountFilter{})
	if err != nil {
		return Participation{}, err
	}
	return participation(cohort, loans), nil
}

// ParticipationAll reports participation for every cohort in source order.
func (a *Aggregator) ParticipationAll(ctx context.Context) ([]Participation, error) {
	cohorts, err := a.allCohorts(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := a.loansByBorrower(ctx, inventory.LoanCountFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]Participation, len(cohorts))
	for i, c := range cohorts {
		out[i] = participation(c, loans)
	}
	return out, nil
}

func participation(c Cohort, loans map[inventory.BorrowerRef]int) Participation {
	p := Participation{CohortID: c.ID, Name: c.Name, Members: len(c.Members)}
	for _, m := range c.Members {
		if n := loans[m]; n > 0 {
			p.Participants++
			p.TotalLoans += n
		}
	}
	p.Rate = percent(p.Participants, p.Members)
	p.AvgLoansPerParticipant = ratio(p.TotalLoans, p.Participants)
	return p
}

// NonParticipants lists cohort members with no lending record at all.
func (a *Aggregator) NonParticipants(ctx context.Context, cohortID string) ([]inventory.BorrowerRef, error) {
	cohort, err := a.cohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	loans, err := a.loansByBorrower(ctx, inventory.LoanCountFilter{})
	if err != nil {
		return nil, err
	}
	return missing(cohort.Members, loans), nil
}

// TagNonParticipants lists members who never borrowed a resource with Tag.
type TagNonParticipants struct {
	Tag       string                  `json:"tag"`
	Borrowers []inventory.BorrowerRef `json:"borrowers"`
}

// NonParticipantsByTag reports, for each catalog tag of dim, the cohort
// members who never borrowed a resource carrying that tag.
func (a *Aggregator) NonParticipantsByTag(ctx context.Context, cohortID string, dim inventory.Dimension) ([]TagNonParticipants, error) {
	cohort, err := a.cohort(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	tags, err := a.catalog.CountsBy(ctx, dim, inventory.Filter{})
	if err != nil {
		return nil, err
	}
	counts, err := a.loans.LoanCounts(ctx, inventory.LoanCountFilter{GroupBy: dim})
	if err != nil {
		return nil, err
	}
	byTag := make(map[string]map[inventory.BorrowerRef]int)
	for _, c := range counts {
		if byTag[c.Tag] == nil {
			byTag[c.Tag] = make(map[inventory.BorrowerRef]int)
		}
		byTag[c.Tag][c.Borrower] += c.Loans
	}
	out := make([]TagNonParticipants, len(tags))
	for i, tag := range tags {
		out[i] = TagNonParticipants{Tag: tag.Tag, Borrowers: missing(cohort.Members, byTag[tag.Tag])}
	}
	return out, nil
}

func missing(members []inventory.BorrowerRef, loans map[inventory.BorrowerRef]int) []inventory.BorrowerRef {
	out := make([]inventory.BorrowerRef, 0)
	for _, m := range members {
		if loans[m] == 0 {
			out = append(out, m)
		}
	}
	return out
}

// Matrix is loans per cohort and classification tag.
type Matrix struct {
	Dimension inventory.Dimension `json:"dimension"`
	Tags      []string            `json:"tags"`
	Rows      []MatrixRow         `json:"rows"`
}

// MatrixRow is one cohort's loans per tag.
type MatrixRow struct {
	CohortID string         `json:"cohort_id"`
	Name     string         `json:"name,omitempty"`
	Loans    map[string]int `json:"loans"`
	Total    int            `json:"total"`
}

// CohortTagMatrix counts loans per cohort and tag of dim. Loans by borrowers
// outside every cohort appear under the Unassigned row.
func (a *Aggregator) CohortTagMatrix(ctx context.Context, dim inventory.Dimension) (Matrix, error) {
	if !dim.Valid() {
		return Matrix{}, &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf("unknown classification dimension %q", dim)}
	}
	cohorts, err := a.allCohorts(ctx)
	if err != nil {
		return Matrix{}, err
	}
	counts, err := a.loans.LoanCounts(ctx, inventory.LoanCountFilter{GroupBy: dim})
	if err != nil {
		return Matrix{}, err
	}

	memberOf := make(map[inventory.BorrowerRef]int)
	rows := make([]MatrixRow, len(cohorts), len(cohorts)+1)
	for i, c := range cohorts {
		rows[i] = MatrixRow{CohortID: c.ID, Name: c.Name, Loans: map[string]int{}}
		for _, m := range c.Members {
			memberOf[m] = i
		}
	}
	unassigned := -1
	tagSet := make(map[string]struct{})
	for _, c := range counts {
		idx, ok := memberOf[c.Borrower]
		if !ok {
			if unassigned < 0 {
				unassigned = len(rows)
				rows = append(rows, MatrixRow{CohortID: Unassigned, Loans: map[string]int{}})
			}
			idx = unassigned
		}
		rows[idx].Loans[c.Tag] += c.Loans
		rows[idx].Total += c.Loans
		tagSet[c.Tag] = struct{}{}
	}

	tags := make([]string, 0, len(tagSet))
	for tag := range tagSet {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return Matrix{Dimension: dim, Tags: tags, Rows: rows}, nil
}

func (a *Aggregator) allCohorts(ctx context.Context) ([]Cohort, error) {
	if a.cohorts == nil {
		return nil, &inventory.Error{Kind: inventory.KindValidation, Message: "no roster configured"}
	}
	cohorts, err := a.cohorts.Cohorts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cohorts: %w", err)
	}
	return cohorts, nil
}

func (a *Aggregator) cohort(ctx context.Context, id string) (Cohort, error) {
	cohorts, err := a.allCohorts(ctx)
	if err != nil {
		return Cohort{}, err
	}
	for _, c := range cohorts {
		if c.ID == id {
			return c, nil
		}
	}
	return Cohort{}, &inventory.Error{Kind: inventory.KindValidation, Message: fmt.Sprintf("unknown cohort %q", id)}
}

func (a *Aggregator) loansByBorrower(ctx context.Context, f inventory.LoanCountFilter) (map[inventory.BorrowerRef]int, error) {
	counts, err := a.loans.LoanCounts(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make(map[inventory.BorrowerRef]int, len(counts))
	for _, c := range counts {
		out[c.Borrower] += c.Loans
	}
	a.logger.Debug("loan counts loaded", logging.Int("borrowers", len(out)))
	return out, nil
}
