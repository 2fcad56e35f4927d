package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// pruneLogs deletes dated arkimedes log files in dir whose modification
// time is older than maxAge. The file named keep is never removed. Failures
// are logged and otherwise ignored.
func pruneLogs(logger *slog.Logger, dir, keep string, maxAge time.Duration) {
	if maxAge <= 0 || dir == "" {
		return
	}
	matches, err := filepath.Glob(filepath.Join(dir, logFilePattern))
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, path := range matches {
		if path == keep {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "could not prune old log file", "log_prune_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on the log directory"),
				String(FieldImpact, "the old log file stays on disk"),
			)
			continue
		}
		logger.Debug("pruned old log file", String("path", path), String(FieldEventType, "log_pruned"))
	}
}
