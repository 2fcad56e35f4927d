// Package anvl models identifier metadata records and their line-oriented
// wire format.
//
// A Record is an ordered, immutable list of key/value pairs with unique,
// case-sensitive keys. Mutating helpers (With, Without, Merge) return a new
// Record and never touch the receiver, so records can be shared freely across
// goroutines.
//
// The codec writes one `key: value` line per pair. Structurally significant
// characters are percent-escaped: `%`, line feed and carriage return in keys
// and values, plus `:` in keys. Decoding splits each line on its first colon,
// so values may carry raw colons (URLs, ARKs) without escaping. Decode is the
// exact inverse of Encode for every Record, including empty values, embedded
// newlines and arbitrary unicode.
//
// The multi-record form used by registry batch downloads separates records
// with blank lines and may open a record with a `:: <identifier>` header,
// which decodes to the reserved `_id` key.
package anvl
