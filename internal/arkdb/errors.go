package arkdb

import "fmt"

// DuplicateTargetError reports a mint for a target URL that already has an
// identifier. Identifier is empty when the conflict is another row of the
// same run.
type DuplicateTargetError struct {
	Target     string
	Identifier string
}

func (e *DuplicateTargetError) Error() string {
	if e.Identifier == "" {
		return fmt.Sprintf("target %s is already being minted in this run", e.Target)
	}
	return fmt.Sprintf("target %s already has identifier %s", e.Target, e.Identifier)
}

// ErrorKind classifies the error for batch reporting.
func (e *DuplicateTargetError) ErrorKind() string { return "duplicate" }
