package batch

import (
	"fmt"
	"time"

	"arkimedes/internal/anvl"
	"arkimedes/internal/ezid"
)

// Status is the terminal state of one row.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Result is the outcome for one input row.
type Result struct {
	Row        int
	Action     ezid.Action
	Status     Status
	Identifier string
	// Record is the resulting metadata on success and the submitted record
	// otherwise.
	Record   anvl.Record
	Err      error
	Class    string
	Attempts int
	Duration time.Duration
}

// OK reports whether the row succeeded.
func (r Result) OK() bool { return r.Status == StatusSucceeded }

// Message returns the failure text, or an empty string on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary counts outcomes across a report.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d total, %d succeeded, %d failed, %d skipped", s.Total, s.Succeeded, s.Failed, s.Skipped)
}

// Report is the ordered outcome of a run.
type Report struct {
	RunID   string
	Action  ezid.Action
	DryRun  bool
	Results []Result
	Summary Summary
}

// Failed returns the failed and skipped results in input order.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

func summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, res := range results {
		switch res.Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}
