package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Exit codes returned by the CLI.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitPartial = 3
)

// errorClassifier mirrors the ErrorKind method carried by typed errors across
// the module.
type errorClassifier interface {
	ErrorKind() string
}

// Wrap tags err with marker, one of the sentinels above, and prefixes the
// non-empty parts of component, operation and message. A nil marker is
// treated as ErrTransient.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	var parts []string
	for _, p := range []string{component, operation, message} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	detail := strings.Join(parts, ": ")
	if detail == "" {
		detail = "unspecified failure"
	}
	if err == nil {
		return fmt.Errorf("%w: %s", marker, detail)
	}
	return fmt.Errorf("%w: %s: %w", marker, detail, err)
}

// ExitCode maps an error to the process exit code. Caller mistakes
// (validation, configuration, invalid actions, malformed input) exit with
// ExitUsage; everything else with ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) {
		return ExitUsage
	}
	var classifier errorClassifier
	if errors.As(err, &classifier) {
		switch classifier.ErrorKind() {
		case "validation", "configuration", "invalid_action", "schema", "format":
			return ExitUsage
		}
	}
	return ExitFailure
}
