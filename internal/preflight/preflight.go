package preflight

import (
	"context"
	"path/filepath"

	"arkimedes/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// pinger may be nil when no registry client could be built; the registry
// check then reports the missing credentials.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if cfg.Database.Enabled {
		results = append(results, CheckDirectoryAccess("Mirror directory", filepath.Dir(cfg.Database.Path)))
		results = append(results, CheckMirror(ctx, cfg))
	}

	results = append(results, CheckCredentials(cfg))
	if pinger != nil && cfg.HasCredentials() {
		results = append(results, CheckRegistry(ctx, pinger))
	}

	if cfg.Reconcile.Enabled {
		results = append(results, CheckEndpoint(ctx, "Name authority", cfg.Reconcile.BaseURL+"/authorities/names/suggest2?q=test"))
	}
	if cfg.Sources.OAIBaseURL != "" {
		results = append(results, CheckEndpoint(ctx, "OAI-PMH repository", cfg.Sources.OAIBaseURL+"?verb=Identify"))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
