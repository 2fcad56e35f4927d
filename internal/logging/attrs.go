package logging

import (
	"log/slog"
	"slices"
	"time"
)

// Attr is re-exported so callers can build attribute lists without
// importing log/slog alongside this package.
type Attr = slog.Attr

func String(key, value string) Attr { return slog.String(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Group(key string, attrs ...Attr) Attr { return slog.Attr{Key: key, Value: slog.GroupValue(attrs...)} }

// Error records err under the "error" key. A nil error is logged as "<nil>"
// rather than dropped so a misplaced call stays visible.
func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger { return slog.New(discardHandler{}) }

// NewComponentLogger tags logger with a component name. Console output
// prints it as a prefix to the message.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(slog.String(FieldComponent, component))
}

const (
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"
)

var warningDefaults = []Attr{
	slog.String(FieldErrorHint, "see the log file for details"),
	slog.String(FieldImpact, "the affected input was not processed"),
}

// WarnWithContext logs a warning that always carries event_type, error_hint
// and impact. Caller-supplied values win over the defaults.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	out := append(slices.Clone(attrs), slog.String(FieldEventType, eventType))
	out = append(out, warningDefaults...)
	seen := make(map[string]bool, len(out))
	args := make([]any, 0, len(out))
	for _, a := range out {
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		args = append(args, a)
	}
	logger.Warn(msg, args...)
}
