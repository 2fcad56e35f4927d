package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"arkimedes/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Writer receives console or JSON output; nil means stderr so stdout
	// stays free for records and reports.
	Writer io.Writer
	// FilePath additionally appends JSON lines to the named file.
	FilePath    string
	Color       bool
	Development bool
}

// New builds a logger from opts. The closer releases the log file when
// FilePath is set and is a no-op otherwise.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	withSource := opts.Development || level.Level() <= slog.LevelDebug

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	var primary slog.Handler
	switch f := strings.ToLower(strings.TrimSpace(opts.Format)); f {
	case "", "console":
		primary = newConsoleHandler(out, level, withSource, opts.Color)
	case "json":
		primary = newJSONHandler(out, level, withSource)
	default:
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	path := strings.TrimSpace(opts.FilePath)
	if path == "" {
		return slog.New(primary), noFile{}, nil
	}
	file, err := openLogFile(path)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(newSplitHandler(primary, newJSONHandler(file, level, withSource))), file, nil
}

// NewFromConfig builds the application logger writing to w, or stderr when
// w is nil. Colour is used only when w is a terminal. When file logging is
// enabled a dated JSON log is appended in the log directory and dated logs
// past the retention window are removed.
func NewFromConfig(cfg *config.Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	if w == nil {
		w = os.Stderr
	}
	opts := Options{Level: "info", Writer: w}
	if f, ok := w.(*os.File); ok {
		opts.Color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if cfg == nil {
		return New(opts)
	}
	opts.Level = cfg.Logging.Level
	opts.Format = cfg.Logging.Format
	if cfg.Logging.File && cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, LogFileName(time.Now()))
	}
	logger, closer, err := New(opts)
	if err != nil {
		return nil, nil, err
	}
	if opts.FilePath != "" {
		pruneLogs(logger, cfg.Paths.LogDir, opts.FilePath, time.Duration(cfg.Logging.RetentionDays)*24*time.Hour)
	}
	return logger, closer, nil
}

const logFilePattern = "arkimedes-*.log"

// LogFileName returns the dated file log name for t.
func LogFileName(t time.Time) string {
	return "arkimedes-" + t.Format("20060102") + ".log"
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open log file %s", path), err)
	}
	return file, nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "warning":
		return slog.LevelWarn
	default:
		if err := l.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelInfo
		}
	}
	return l
}

type noFile struct{}

func (noFile) Close() error { return nil }
