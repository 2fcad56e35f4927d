// Package preflight provides readiness checks for the registry, the
// optional lookup services and the filesystem paths arkimedes depends on.
//
// These checks run in two contexts:
//   - The "arkimedes check" command runs RunAll and prints every result.
//   - The batch command calls CheckRegistry before a live run so bad
//     credentials fail once instead of once per row.
//
// Each optional check is gated by its config toggle; disabled features are
// skipped.
package preflight
