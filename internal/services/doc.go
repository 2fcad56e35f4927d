// Package services defines shared utilities consumed by the batch operator,
// the registry client and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp batch run IDs, input row numbers, actions and
//     identifiers so loggers can attach them without extra plumbing.
//   - Structured error markers plus the Wrap helper that keep failures from
//     collaborators (external tools, configuration, input validation)
//     classifiable, and ExitCode which maps them onto process exit codes.
package services
