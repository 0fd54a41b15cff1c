// Package analytics derives utilization and participation figures from the
// catalog and lending history.
//
// The aggregator is read only and tolerates slightly stale snapshots. Every
// ratio is guarded: an empty catalog or an empty cohort yields 0 rather than
// an error. Cohort membership comes from a CohortSource supplied by the
// caller; the engine itself stores no borrower identities.
package analytics
