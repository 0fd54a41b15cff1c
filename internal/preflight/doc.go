// Package preflight provides readiness checks for the filesystem paths and
// files lendkeeper depends on.
//
// The CLI "lendkeeper doctor" command runs RunAll and, once a store is open,
// CheckDatabase. Checks for optional features are skipped when the feature is
// not configured.
package preflight
