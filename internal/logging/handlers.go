package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// newJSONHandler writes one object per line with a "ts" key in UTC, lower
// case levels and file:line sources.
func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   addSource,
		ReplaceAttr: compactJSONAttr,
	})
}

func compactJSONAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339))
	case slog.LevelKey:
		return slog.String(slog.LevelKey, strings.ToLower(a.Value.String()))
	case slog.SourceKey:
		if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(slog.SourceKey, filepath.Base(src.File)+":"+strconv.Itoa(src.Line))
		}
	}
	return a
}

// splitHandler sends every record to each destination that accepts its
// level, so the console and the log file can run at different thresholds.
type splitHandler []slog.Handler

func newSplitHandler(handlers ...slog.Handler) slog.Handler {
	var live splitHandler
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return discardHandler{}
	case 1:
		return live[0]
	}
	return live
}

func (s splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range s {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (s splitHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range s {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (s splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return s.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (s splitHandler) WithGroup(name string) slog.Handler {
	return s.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (s splitHandler) each(fn func(slog.Handler) slog.Handler) splitHandler {
	out := make(splitHandler, len(s))
	for i, h := range s {
		out[i] = fn(h)
	}
	return out
}

// floorHandler drops records below floor before they reach next.
type floorHandler struct {
	next  slog.Handler
	floor slog.Level
}

func (f floorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= f.floor && f.next.Enabled(ctx, level)
}

func (f floorHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < f.floor {
		return nil
	}
	return f.next.Handle(ctx, r)
}

func (f floorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return floorHandler{next: f.next.WithAttrs(attrs), floor: f.floor}
}

func (f floorHandler) WithGroup(name string) slog.Handler {
	return floorHandler{next: f.next.WithGroup(name), floor: f.floor}
}

// WithLevelOverride raises logger's threshold to level, for commands such
// as --quiet runs that only want warnings. Raising an already overridden
// logger replaces the earlier floor instead of stacking.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if f, ok := next.(floorHandler); ok {
		next = f.next
	}
	return slog.New(floorHandler{next: next, floor: level})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
