package tabular

import "fmt"

// SchemaError reports a structural problem in the tabular source. Row is the
// 1-based line on which the offending row starts; the header is row 1.
type SchemaError struct {
	Source string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("tabular: %s: row %d: %s", e.Source, e.Row, e.Reason)
	}
	return fmt.Sprintf("tabular: row %d: %s", e.Row, e.Reason)
}

// ErrorKind classifies the error for batch reporting.
func (e *SchemaError) ErrorKind() string { return "schema" }
