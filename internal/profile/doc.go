// Package profile knows the metadata profiles arkimedes writes: the Dublin
// Core keys the registry indexes, their ERC mirrors, the repository defaults
// for publisher and resource type, and the rule that marks a record as a
// placeholder whose identifier may be reused.
package profile
