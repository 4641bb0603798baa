// Package config loads, normalizes, and validates snapmemories configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the CLI needs:
// export and output locations, ledger paths, fetch retry behavior, and
// external tool binaries.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute paths and clear validation errors.
package config
