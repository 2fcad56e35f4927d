package ezid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds reported by ErrorKind methods and Classify.
const (
	KindFormat     = "format"
	KindSchema     = "schema"
	KindInvalid    = "invalid_action"
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindRegistry   = "registry"
	KindTransient  = "transient"
	KindDuplicate  = "duplicate"
	KindCanceled   = "canceled"
	KindUnknown    = "unknown"
)

// ErrorClassifier is implemented by errors that declare their kind.
type ErrorClassifier interface {
	ErrorKind() string
}

// InvalidActionError reports an action outside mint, update and query. It is
// raised before any request is built.
type InvalidActionError struct {
	Value string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("ezid: invalid action %q (expected %s)", e.Value, actionChoices())
}

func (e *InvalidActionError) ErrorKind() string { return KindInvalid }

// ValidationError reports a request that cannot be sent as given.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "ezid: invalid request: " + e.Reason
	}
	return fmt.Sprintf("ezid: invalid request: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) ErrorKind() string { return KindValidation }

// NotFoundError reports that the registry has no such identifier.
type NotFoundError struct {
	Identifier string
	Message    string
}

func (e *NotFoundError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "no such identifier"
	}
	if e.Identifier == "" {
		return "ezid: " + msg
	}
	return fmt.Sprintf("ezid: %s: %s", e.Identifier, msg)
}

func (e *NotFoundError) ErrorKind() string { return KindNotFound }

// RegistryError is a permanent rejection by the registry.
type RegistryError struct {
	Status  int
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("ezid: registry rejected request (http %d): %s", e.Status, strings.TrimSpace(e.Message))
}

func (e *RegistryError) ErrorKind() string { return KindRegistry }

// TransientError is a failure worth retrying: a network fault, a timeout, or
// a 408, 429 or 5xx response. Status is zero when no response arrived.
type TransientError struct {
	Status     int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	var b strings.Builder
	b.WriteString("ezid: transient failure")
	if e.Status > 0 {
		fmt.Fprintf(&b, " (http %d)", e.Status)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) ErrorKind() string { return KindTransient }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// Classify maps an error to its kind. Context cancellation maps to
// KindCanceled; errors that declare no kind map to KindUnknown.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return KindTransient
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := classifier.ErrorKind(); kind != "" {
			return kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}
