package daemon

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/frameio"
	"github.com/LukeVan/frame-io-max-activation/internal/testsupport"
)

// fakeClient is a minimal in-memory remote: created assets become ready
// immediately, and the monitored folder serves whatever assets the test
// seeds.
type fakeClient struct {
	mu      sync.Mutex
	uploads map[string][]byte // assetID -> bytes
	names   map[string]string // assetID -> name
	monitor []frameio.Asset
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		uploads: make(map[string][]byte),
		names:   make(map[string]string),
	}
}

func (c *fakeClient) CreateAsset(ctx context.Context, folderID, name string, size int64) (frameio.UploadTarget, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := "asset-" + name
	c.names[id] = name
	return frameio.UploadTarget{AssetID: id, UploadURL: "https://upload.invalid/" + id}, nil
}

func (c *fakeClient) PutBytes(ctx context.Context, target frameio.UploadTarget, body io.Reader, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.uploads[target.AssetID] = data
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) GetAsset(ctx context.Context, assetID string) (frameio.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return frameio.Asset{ID: assetID, Name: c.names[assetID], Status: frameio.StatusTranscoded}, nil
}

func (c *fakeClient) ListAssets(ctx context.Context, folderID string) ([]frameio.Asset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frameio.Asset(nil), c.monitor...), nil
}

func (c *fakeClient) SetField(ctx context.Context, assetID, fieldDefinitionID, value string) error {
	return nil
}

func (c *fakeClient) Download(ctx context.Context, assetID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("approved content for " + assetID)), nil
}

func (c *fakeClient) uploadedNames(t *testing.T) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for id := range c.uploads {
		names = append(names, c.names[id])
	}
	return names
}

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonUploadsDroppedFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.DebounceSeconds = 1
	cfg.FrameIO.MonitorFolderID = "" // upload-only daemon

	client := newFakeClient()
	d, err := New(context.Background(), Options{Config: cfg, Client: client})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	defer d.Stop()

	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WatchDir, "clip.mov"), 4096)

	waitFor(t, 15*time.Second, "upload", func() bool {
		return len(client.uploadedNames(t)) == 1
	})
	if names := client.uploadedNames(t); names[0] != "clip.mov" {
		t.Fatalf("uploaded %v", names)
	}
}

func TestDaemonDownloadsApprovedAsset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Monitor.PollIntervalSeconds = 1
	cfg.FrameIO.TargetFolderID = "" // monitor-only daemon

	client := newFakeClient()
	client.monitor = []frameio.Asset{
		{ID: "asset-9", Name: "final.mov", Status: frameio.StatusTranscoded,
			Fields: map[string]string{"Status": "Approved"}},
	}

	d, err := New(context.Background(), Options{Config: cfg, Client: client})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	defer d.Stop()

	dest := filepath.Join(cfg.Paths.DownloadDir, "final.mov")
	waitFor(t, 15*time.Second, "download", func() bool {
		_, err := os.Stat(dest)
		return err == nil
	})

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "approved content for asset-9" {
		t.Fatalf("content = %q", data)
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.FrameIO.MonitorFolderID = ""

	client := newFakeClient()
	first, err := New(context.Background(), Options{Config: cfg, Client: client})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { first.Close() })
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	second, err := New(context.Background(), Options{Config: cfg, Client: client})
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	t.Cleanup(func() { second.Close() })
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance acquired the lock")
	}
}

func TestDaemonStatusBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	client := newFakeClient()
	d, err := New(context.Background(), Options{Config: cfg, Client: client})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	defer d.Stop()

	status, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("status should report running")
	}
	if status.WatchDir != cfg.Paths.WatchDir {
		t.Fatalf("watch dir = %q", status.WatchDir)
	}
	if status.RequestsPerMinute != cfg.API.RequestsPerMinute {
		t.Fatalf("rpm = %d", status.RequestsPerMinute)
	}

	limit, err := d.RateLimit(context.Background(), 0)
	if err != nil {
		t.Fatalf("rate limit query: %v", err)
	}
	if limit.RequestsPerMinute != cfg.API.RequestsPerMinute {
		t.Fatalf("queried rpm = %d", limit.RequestsPerMinute)
	}
	limit, err = d.RateLimit(context.Background(), 25)
	if err != nil {
		t.Fatalf("rate limit set: %v", err)
	}
	if limit.RequestsPerMinute != 25 {
		t.Fatalf("rpm after set = %d, want 25", limit.RequestsPerMinute)
	}

	list, err := d.StateList(context.Background())
	if err != nil {
		t.Fatalf("state list: %v", err)
	}
	if len(list.Assets) != 0 {
		t.Fatalf("fresh daemon tracks %d assets", len(list.Assets))
	}
}
