// Package registry loads the borrower roster: the students of each cohort and
// the teaching staff. The roster answers borrower existence checks for the
// ledger and cohort membership for analytics.
package registry
