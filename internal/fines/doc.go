// Package fines computes the amount owed when a resource comes back.
//
// A fine is the configured charge for the returned condition plus a per-day
// surcharge for every started day past due, optionally capped. Amounts are
// integer minor currency units.
package fines
