package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/ipc"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

type stubBackend struct {
	notifyErr error
	rpm       int
}

func (b *stubBackend) Ping() ipc.PingResponse {
	return ipc.PingResponse{PID: os.Getpid(), StartedAt: time.Now()}
}

func (b *stubBackend) Status(ctx context.Context) (ipc.StatusResponse, error) {
	return ipc.StatusResponse{
		Running:           true,
		PID:               os.Getpid(),
		StartedAt:         time.Now().Add(-time.Minute),
		WatchDir:          "/watch",
		DownloadDir:       "/approved",
		QueueDepth:        2,
		InflightDownloads: 1,
		TrackedAssets:     5,
		DownloadedAssets:  3,
		RequestsPerMinute: 10,
	}, nil
}

func (b *stubBackend) StateList(ctx context.Context) (ipc.StateListResponse, error) {
	return ipc.StateListResponse{Assets: []ipc.TrackedAsset{
		{AssetID: "asset-1", Name: "clip.mov", LastStatus: "Approved", Downloaded: true, LastSeenAt: time.Now()},
	}}, nil
}

func (b *stubBackend) RateLimit(ctx context.Context, requestsPerMinute int) (ipc.RateLimitResponse, error) {
	if requestsPerMinute > 0 {
		b.rpm = requestsPerMinute
	}
	if b.rpm == 0 {
		b.rpm = 10
	}
	return ipc.RateLimitResponse{RequestsPerMinute: b.rpm}, nil
}

func (b *stubBackend) TestNotification(ctx context.Context) error {
	return b.notifyErr
}

type cliTestEnv struct {
	configPath string
	socketPath string
	logDir     string
}

func setupCLITestEnv(t *testing.T, backend ipc.Backend) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	logDir := filepath.Join(base, "logs")
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base)

	env := &cliTestEnv{
		configPath: configPath,
		socketPath: filepath.Join(base, "absent.sock"),
		logDir:     logDir,
	}

	if backend != nil {
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)

		env.socketPath = filepath.Join(base, "cli.sock")
		srv, err := ipc.NewServer(ctx, env.socketPath, backend, logging.NewNop())
		if err != nil {
			if strings.Contains(err.Error(), "operation not permitted") {
				t.Skipf("skipping CLI IPC test: %v", err)
			}
			t.Fatalf("ipc.NewServer: %v", err)
		}
		srv.Serve()
		t.Cleanup(srv.Close)
	}

	return env
}

func writeTestConfig(t *testing.T, path, base string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
watch_dir = %q
download_dir = %q
log_dir = %q

[frameio]
token = "test-token"
account_id = "test-account"
target_folder_id = "test-target"
monitor_folder_id = "test-monitor"
`,
		filepath.Join(base, "watch"),
		filepath.Join(base, "approved"),
		filepath.Join(base, "logs"),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", env.socketPath, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, output)
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t, &stubBackend{})

	out, _, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Tracked assets")
	requireContains(t, out, "5")
	requireContains(t, out, "/watch")
}

func TestCLIStateListViaIPC(t *testing.T) {
	env := setupCLITestEnv(t, &stubBackend{})

	out, _, err := runCLI(t, env, "state", "list")
	if err != nil {
		t.Fatalf("state list: %v", err)
	}
	requireContains(t, out, "asset-1")
	requireContains(t, out, "clip.mov")
	requireContains(t, out, "Approved")
}

func TestCLIStateListFallsBackToStore(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	store, err := state.Open(filepath.Join(env.logDir, "state.db"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	record := state.AssetRecord{
		AssetID:    "asset-direct",
		Name:       "reel.mp4",
		LastStatus: "In Review",
		LastSeenAt: time.Now().UTC(),
	}
	if err := store.UpsertAsset(context.Background(), record); err != nil {
		t.Fatalf("UpsertAsset: %v", err)
	}
	store.Close()

	out, _, err := runCLI(t, env, "state", "list")
	if err != nil {
		t.Fatalf("state list: %v", err)
	}
	requireContains(t, out, "asset-direct")
	requireContains(t, out, "reel.mp4")
}

func TestCLIStateResetRequiresForce(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	_, _, err := runCLI(t, env, "state", "reset")
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected force guard error, got %v", err)
	}

	out, _, err := runCLI(t, env, "state", "reset", "--force")
	if err != nil {
		t.Fatalf("state reset --force: %v", err)
	}
	requireContains(t, out, "State store reset")
}

func TestCLIRateLimitCommand(t *testing.T) {
	env := setupCLITestEnv(t, &stubBackend{})

	out, _, err := runCLI(t, env, "rate-limit")
	if err != nil {
		t.Fatalf("rate-limit query: %v", err)
	}
	requireContains(t, out, "10 requests/minute")

	out, _, err = runCLI(t, env, "rate-limit", "25")
	if err != nil {
		t.Fatalf("rate-limit set: %v", err)
	}
	requireContains(t, out, "Rate limit set to 25")

	if _, _, err := runCLI(t, env, "rate-limit", "zero"); err == nil {
		t.Fatal("expected error for non-numeric argument")
	}
	if _, _, err := runCLI(t, env, "rate-limit", "-3"); err == nil {
		t.Fatal("expected error for negative argument")
	}
}

func TestCLITestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t, &stubBackend{})

	out, _, err := runCLI(t, env, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
}

func TestCLIConfigInit(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, env, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestCLIConfigShow(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	out, _, err := runCLI(t, env, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, env.configPath)
	requireContains(t, out, "frameio.token")
	requireContains(t, out, "[set]")
	requireContains(t, out, "test-target")
}

func TestCLIStatusWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t, nil)

	_, _, err := runCLI(t, env, "status")
	if err == nil || !strings.Contains(err.Error(), "connect to daemon") {
		t.Fatalf("expected dial error, got %v", err)
	}
}
