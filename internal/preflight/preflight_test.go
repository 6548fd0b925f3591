package preflight

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if r := CheckDirectoryAccess("dir", dir); !r.Passed {
		t.Fatalf("accessible dir failed: %s", r.Detail)
	}
	if r := CheckDirectoryAccess("dir", filepath.Join(dir, "missing")); r.Passed {
		t.Fatal("missing dir passed")
	}
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if r := CheckDirectoryAccess("dir", file); r.Passed {
		t.Fatal("regular file passed directory check")
	}
}

func TestCheckWritableDirectoryCreatesMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downloads")
	if r := CheckWritableDirectory("downloads", path); !r.Passed {
		t.Fatalf("creatable dir failed: %s", r.Detail)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("directory was not created: %v", err)
	}
}

func TestCheckStateDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	if r := CheckStateDatabase(context.Background(), path); !r.Passed {
		t.Fatalf("fresh database failed: %s", r.Detail)
	}

	// Garbage where the database should be fails the check.
	bad := filepath.Join(t.TempDir(), "state.db")
	if err := os.WriteFile(bad, []byte("not a database at all"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	if r := CheckStateDatabase(context.Background(), bad); r.Passed {
		t.Fatal("corrupt database passed")
	}
}

func TestCheckRemoteConfig(t *testing.T) {
	cfg := config.Default()
	cfg.FrameIO.Token = "tok"
	cfg.FrameIO.AccountID = "acct"
	cfg.FrameIO.TargetFolderID = "folder"
	if r := CheckRemoteConfig(&cfg); !r.Passed {
		t.Fatalf("complete config failed: %s", r.Detail)
	}

	cfg.FrameIO.Token = ""
	if r := CheckRemoteConfig(&cfg); r.Passed {
		t.Fatal("missing token passed")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if r := CheckFreeSpace("space", dir, 1); !r.Passed {
		t.Skipf("less than 1 GiB free in test environment: %s", r.Detail)
	}
	// An absurd floor always fails.
	if r := CheckFreeSpace("space", dir, 1<<20); r.Passed {
		t.Fatal("impossible space floor passed")
	}
}

func TestFailed(t *testing.T) {
	results := []Result{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false, Detail: "broken"},
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "b" {
		t.Fatalf("failed = %+v", failed)
	}
}
