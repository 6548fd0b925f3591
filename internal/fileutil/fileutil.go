// Package fileutil provides durable file-writing helpers shared by the
// download path.
package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteStreamAtomic streams r into path via a temporary file in the same
// directory, fsyncs, then renames into place. Readers never observe a
// partially written file. The temporary file is removed on any failure.
func WriteStreamAtomic(path string, r io.Reader) (written int64, err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".partial-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err = io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rename into place: %w", err)
	}
	return written, nil
}

// UniquePath returns path unchanged when nothing exists there, otherwise a
// variant with a timestamp suffix before the extension so an existing file
// is never overwritten.
func UniquePath(path string) string {
	if _, err := os.Lstat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	stem := path[:len(path)-len(ext)]
	stamp := time.Now().UTC().Format("20060102-150405")
	candidate := fmt.Sprintf("%s-%s%s", stem, stamp, ext)
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); err != nil {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%s-%d%s", stem, stamp, i, ext)
	}
}
