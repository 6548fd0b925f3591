package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "watch")
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.FrameIO.Token = "test-token"
	cfg.FrameIO.AccountID = "test-account"
	cfg.FrameIO.TargetFolderID = "test-target-folder"
	cfg.FrameIO.MonitorFolderID = "test-monitor-folder"

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithMonitorFolder overrides the monitored folder id on the test config.
func WithMonitorFolder(id string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.FrameIO.MonitorFolderID = id
	}
}

// WithWorkers overrides the upload worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Upload.Workers = n
	}
}
