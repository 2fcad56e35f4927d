package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"arkimedes/internal/arkdb"
	"arkimedes/internal/config"
)

// CheckMirror reports the state of the local mirror database without
// creating it.
func CheckMirror(ctx context.Context, cfg *config.Config) Result {
	const name = "Mirror database"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.Database.Enabled {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	if _, err := os.Stat(cfg.Database.Path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet; run 'arkimedes db load')", cfg.Database.Path)}
	}

	store, err := arkdb.OpenPath(cfg.Database.Path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	total, err := store.Count(ctx, arkdb.Filter{})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("count failed: %v", err)}
	}
	replaceable, err := store.Count(ctx, arkdb.Filter{Replaceable: true})
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("count failed: %v", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d identifiers, %d replaceable)", cfg.Database.Path, total, replaceable)}
}
