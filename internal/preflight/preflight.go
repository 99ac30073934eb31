package preflight

import (
	"context"
	"strings"

	"fieldsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config. serverURL
// overrides server.url when non-empty.
func RunAll(ctx context.Context, cfg *config.Config, serverURL string) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckStateLock(cfg.LockPath()))

	// Manifest (when configured)
	if cfg.Paths.Manifest != "" {
		results = append(results, CheckManifest(cfg.Paths.Manifest))
	}

	if strings.TrimSpace(serverURL) == "" {
		serverURL = cfg.Server.URL
	}
	results = append(results, CheckServer(ctx, cfg, serverURL))

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
