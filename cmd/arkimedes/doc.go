// Package main hosts the arkimedes CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into registry
// operations: batch runs over tabular or harvested input, single-record
// mint, update and view, batch downloads, local mirror maintenance and
// configuration scaffolding. It centralizes configuration resolution,
// logger and tracer setup, and registry client construction so subcommands
// can focus on their own flags and output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
