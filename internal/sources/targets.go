package sources

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"arkimedes/internal/anvl"
)

// ReadTargets reads one target per line, skipping blank lines and lines
// starting with "#".
func ReadTargets(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}
	return out, nil
}

// TargetCountError reports a target list that does not pair one-to-one
// with the records.
type TargetCountError struct {
	Records int
	Targets int
}

func (e *TargetCountError) Error() string {
	return fmt.Sprintf("%d targets supplied for %d records", e.Targets, e.Records)
}

// ErrorKind classifies the error for batch reporting.
func (e *TargetCountError) ErrorKind() string { return "validation" }

// AssignTargets sets _target on each record from the target at the same
// position. Existing targets are replaced.
func AssignTargets(records []anvl.Record, targets []string) ([]anvl.Record, error) {
	if len(records) != len(targets) {
		return nil, &TargetCountError{Records: len(records), Targets: len(targets)}
	}
	out := make([]anvl.Record, len(records))
	for i, rec := range records {
		out[i] = rec.With(anvl.KeyTarget, targets[i])
	}
	return out, nil
}
