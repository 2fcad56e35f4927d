// Package batch drives registry requests over a sequence of input rows.
//
// Operator.Run dispatches one request per row through a bounded worker pool
// and returns a Report holding exactly one Result per row read, in input
// order. A row's failure is recorded in its Result and never aborts the run;
// Run itself only fails when the input sequence cannot be read or the action
// is illegal.
//
// Transient registry failures are retried with capped exponential backoff.
// Cancelling the context stops dispatch: rows not yet started are recorded
// as skipped while calls already in flight finish and keep their outcome.
package batch
