// Package config loads, normalizes, and validates lendkeeper configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LENDKEEPER_DATA_DIR. The Config type centralizes the loan periods, fine
// table, ledger policies and storage knobs the engine and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config
