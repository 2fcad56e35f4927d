// Package config loads, normalizes, and validates arkimedes configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// EZID_USERNAME and EZID_PASSWORD. The Config type centralizes every knob the
// CLI needs: registry endpoint and credentials, batch concurrency and retry
// policy, the local mirror database, metadata defaults and name
// reconciliation.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
