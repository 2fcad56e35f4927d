// Package arkdb keeps a local SQLite mirror of identifier records.
//
// The mirror answers questions the registry cannot answer cheaply: which
// identifier already points at a target URL, which records are placeholders
// that may be recycled, and what a collection looked like at the last batch
// download. Records are stored both as indexed columns and as their full
// ANVL text, so Dump reproduces exactly what Load or Upsert received.
//
// Tracker wraps an ezid.Executor so batch runs consult and refresh the
// mirror: mints are refused for targets the mirror already knows, may be
// redirected to a replaceable identifier, and every success is upserted.
package arkdb
