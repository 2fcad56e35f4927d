package logging

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

// consoleSink serializes writes from every handler derived from one logger.
type consoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// consoleHandler prints one line per record:
//
//	2024-01-02T15:04:05Z INFO batch: row failed row=4 class=validation
//
// Attributes added with WithAttrs are rendered once and reused; a top level
// "component" attribute becomes the message prefix instead of a pair.
type consoleHandler struct {
	sink      *consoleSink
	level     slog.Leveler
	addSource bool
	color     bool
	component string
	group     string
	fields    []byte
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource, color bool) *consoleHandler {
	return &consoleHandler{sink: &consoleSink{w: w}, level: level, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	component := h.component
	fields := h.fields
	if r.NumAttrs() > 0 {
		fields = append([]byte(nil), h.fields...)
		r.Attrs(func(a slog.Attr) bool {
			if h.group == "" && a.Key == FieldComponent {
				if component == "" {
					component = plainValue(a.Value)
				}
				return true
			}
			fields = h.appendAttr(fields, h.group, a)
			return true
		})
	}

	line := make([]byte, 0, 96+len(fields))
	line = h.appendPainted(line, ansiDim, ts.UTC().Format(time.RFC3339))
	line = append(line, ' ')
	line = h.appendPainted(line, levelColor(r.Level), levelLabel(r.Level))
	line = append(line, ' ')
	if component != "" {
		line = append(line, component...)
		line = append(line, ": "...)
	}
	if r.Message == "" {
		line = append(line, "(no message)"...)
	} else {
		line = append(line, r.Message...)
	}
	if h.addSource {
		if src := r.Source(); src != nil && src.File != "" {
			line = append(line, " ["...)
			line = append(line, filepath.Base(src.File)...)
			line = append(line, ':')
			line = strconv.AppendInt(line, int64(src.Line), 10)
			line = append(line, ']')
		}
	}
	line = append(line, fields...)
	line = append(line, '\n')

	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	_, err := h.sink.w.Write(line)
	return err
}

// appendAttr renders a as " key=value", flattening groups into dotted keys.
func (h *consoleHandler) appendAttr(dst []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			dst = h.appendAttr(dst, prefix, member)
		}
		return dst
	}
	dst = append(dst, ' ')
	dst = h.appendPainted(dst, ansiDim, prefix+a.Key+"=")
	return append(dst, consoleValue(a.Value)...)
}

func (h *consoleHandler) appendPainted(dst []byte, code, text string) []byte {
	if !h.color {
		return append(dst, text...)
	}
	dst = append(dst, code...)
	dst = append(dst, text...)
	return append(dst, ansiReset...)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.fields = append([]byte(nil), h.fields...)
	for _, a := range attrs {
		if h.group == "" && a.Key == FieldComponent {
			next.component = plainValue(a.Value)
			continue
		}
		next.fields = next.appendAttr(next.fields, h.group, a)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.group + name + "."
	return &next
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return ansiRed
	case level >= slog.LevelWarn:
		return ansiYellow
	case level >= slog.LevelInfo:
		return ansiCyan
	}
	return ansiDim
}
