package anvl

import (
	"fmt"
	"strings"
)

// FormatError reports text that does not follow the wire format. Line is
// 1-based and relative to the decoded text.
type FormatError struct {
	Line    int
	Content string
	Reason  string
	Err     error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("anvl: ")
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Reason)
	if e.Content != "" {
		fmt.Fprintf(&b, ": %q", truncate(e.Content, 120))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for batch reporting.
func (e *FormatError) ErrorKind() string { return "format" }

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
