// Package ezid talks to an EZID-compatible identifier registry.
//
// Every operation is expressed as a Request: MintRequest, UpdateRequest or
// QueryRequest. Each variant carries only the fields its operation needs, so
// an identifier-less update cannot be built. Actions that arrive as external
// input (CLI flags, batch files) go through ParseAction and NewRequest, which
// reject illegal values before any network I/O.
//
// Registry failures are typed. NotFoundError, RegistryError and
// ValidationError are permanent. TransientError marks network faults,
// timeouts, 408/429 and 5xx responses, and carries any Retry-After hint.
// Undecodable responses surface as a wrapped *anvl.FormatError.
package ezid
