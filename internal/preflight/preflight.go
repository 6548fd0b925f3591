package preflight

import (
	"context"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the startup checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Watch directory", cfg.Paths.WatchDir),
		CheckWritableDirectory("Download directory", cfg.Paths.DownloadDir),
		CheckWritableDirectory("Log directory", cfg.Paths.LogDir),
		CheckStateDatabase(ctx, cfg.StatePath()),
		CheckRemoteConfig(cfg),
	}
	if cfg.Daemon.MinFreeSpaceGiB > 0 {
		results = append(results, CheckFreeSpace("Free disk space", cfg.Paths.DownloadDir, cfg.Daemon.MinFreeSpaceGiB))
	}
	return results
}

// Failed returns the subset of results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
