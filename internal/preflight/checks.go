package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckWritableDirectory is CheckDirectoryAccess but creates the directory
// first when it is missing.
func CheckWritableDirectory(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}
	return CheckDirectoryAccess(name, path)
}

// CheckStateDatabase verifies the state store opens and its schema is usable.
func CheckStateDatabase(ctx context.Context, path string) Result {
	const name = "State database"
	store, err := state.Open(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()
	if _, _, err := store.Counts(ctx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (schema ok)", path)}
}

// CheckRemoteConfig verifies the remote credentials and folder ids needed
// by the pipeline are present.
func CheckRemoteConfig(cfg *config.Config) Result {
	const name = "Remote configuration"
	switch {
	case strings.TrimSpace(cfg.FrameIO.Token) == "":
		return Result{Name: name, Detail: "api token missing"}
	case strings.TrimSpace(cfg.FrameIO.AccountID) == "":
		return Result{Name: name, Detail: "account id missing"}
	case strings.TrimSpace(cfg.FrameIO.TargetFolderID) == "" && strings.TrimSpace(cfg.FrameIO.MonitorFolderID) == "":
		return Result{Name: name, Detail: "no target or monitor folder configured"}
	}
	return Result{Name: name, Passed: true, Detail: "credentials and folders configured"}
}

// CheckFreeSpace verifies the filesystem holding path has at least minGiB
// available.
func CheckFreeSpace(name, path string, minGiB int) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	availGiB := float64(stat.Bavail) * float64(stat.Bsize) / (1 << 30)
	if availGiB < float64(minGiB) {
		return Result{Name: name, Detail: fmt.Sprintf("%.1f GiB available, %d GiB required", availGiB, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%.1f GiB available", availGiB)}
}
