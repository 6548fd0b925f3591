package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
watch_dir = "`+filepath.Join(base, "in")+`"
download_dir = "`+filepath.Join(base, "out")+`"
log_dir = "`+filepath.Join(base, "logs")+`"

[frameio]
token = "secret"
account_id = "acct-1"
target_folder_id = "folder-1"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %s, got %s (exists=%v)", path, resolved, exists)
	}
	if cfg.Upload.Workers != 5 {
		t.Fatalf("expected default worker count 5, got %d", cfg.Upload.Workers)
	}
	if cfg.API.RequestsPerMinute != 10 {
		t.Fatalf("expected default rpm 10, got %d", cfg.API.RequestsPerMinute)
	}
	if cfg.Monitor.PollIntervalSeconds != 60 {
		t.Fatalf("expected default poll interval 60, got %d", cfg.Monitor.PollIntervalSeconds)
	}
	if got := cfg.Monitor.StatusFields; len(got) != 1 || got[0] != "Status" {
		t.Fatalf("unexpected default status fields: %v", got)
	}
	if len(cfg.Monitor.ApprovedValues) == 0 {
		t.Fatal("expected default approved values")
	}
	if cfg.Upload.DebounceSeconds != 2 {
		t.Fatalf("expected default debounce 2s, got %d", cfg.Upload.DebounceSeconds)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("FRAMEIO_TOKEN", "")
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
watch_dir = "`+filepath.Join(base, "in")+`"
download_dir = "`+filepath.Join(base, "out")+`"

[frameio]
account_id = "acct-1"
target_folder_id = "folder-1"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "frameio.token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestLoadTokenFromEnvironment(t *testing.T) {
	t.Setenv("FRAMEIO_TOKEN", "env-token")
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
watch_dir = "`+filepath.Join(base, "in")+`"
download_dir = "`+filepath.Join(base, "out")+`"

[frameio]
account_id = "acct-1"
monitor_folder_id = "folder-2"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.FrameIO.Token != "env-token" {
		t.Fatalf("expected token from environment, got %q", cfg.FrameIO.Token)
	}
}

func TestValidateRejectsSharedDirectories(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WatchDir = "/tmp/same"
	cfg.Paths.DownloadDir = "/tmp/same"
	cfg.FrameIO.Token = "t"
	cfg.FrameIO.AccountID = "a"
	cfg.FrameIO.TargetFolderID = "f"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for identical watch and download dirs")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WatchDir = "/tmp/in"
	cfg.Paths.DownloadDir = "/tmp/out"
	cfg.FrameIO.Token = "t"
	cfg.FrameIO.AccountID = "a"
	cfg.FrameIO.TargetFolderID = "f"
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}
