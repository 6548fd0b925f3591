// Package watcher turns filesystem activity in the hot folder into upload
// submissions. A file is submitted once it has been quiet for the debounce
// window, is non-empty, and is not already recorded as uploaded.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/services"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

const tickInterval = 500 * time.Millisecond

// Options wires a Watcher.
type Options struct {
	Dir      string
	Debounce time.Duration
	Store    *state.Store
	Logger   *slog.Logger
	// Submit enqueues one stable file for upload. Must not block.
	Submit func(path string) error
}

type pathState int

const (
	statePending pathState = iota
	stateSubmitted
)

type tracked struct {
	state     pathState
	lastEvent time.Time
	// modtime+size at submission, for change detection.
	submittedMod  time.Time
	submittedSize int64
}

// Watcher monitors one directory, non-recursively.
type Watcher struct {
	dir      string
	debounce time.Duration
	store    *state.Store
	logger   *slog.Logger
	submit   func(path string) error

	paths map[string]*tracked
	now   func() time.Time
}

// New builds a Watcher. Dir, Store and Submit are required.
func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("watcher requires a directory")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("watcher requires a state store")
	}
	if opts.Submit == nil {
		return nil, fmt.Errorf("watcher requires a submit function")
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:      opts.Dir,
		debounce: debounce,
		store:    opts.Store,
		logger:   logger.With(logging.String(logging.FieldComponent, "watcher")),
		submit:   opts.Submit,
		paths:    make(map[string]*tracked),
		now:      time.Now,
	}, nil
}

// Run watches until the context is cancelled. Subsystem failures (watch
// registration, event stream closing) are returned as errors; the watcher
// never degrades silently.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrProcessingFailed, "watcher", "start",
			"create filesystem watcher", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return services.Wrap(services.ErrProcessingFailed, "watcher", "start",
			fmt.Sprintf("watch %s", w.dir), err)
	}

	if err := w.initialScan(ctx); err != nil {
		return err
	}
	w.logger.Info("watching hot folder",
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce),
		logging.String(logging.FieldEventType, "watcher_start"))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return services.Wrap(services.ErrProcessingFailed, "watcher", "run",
					"event stream closed unexpectedly", nil)
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return services.Wrap(services.ErrProcessingFailed, "watcher", "run",
					"error stream closed unexpectedly", nil)
			}
			return services.Wrap(services.ErrProcessingFailed, "watcher", "run",
				"filesystem watcher failed", err)
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// initialScan enqueues files already sitting in the hot folder at startup.
func (w *Watcher) initialScan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return services.Wrap(services.ErrProcessingFailed, "watcher", "scan",
			fmt.Sprintf("read %s", w.dir), err)
	}
	backdated := w.now().Add(-w.debounce)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if Ignored(path) {
			continue
		}
		// Backdate so the first sweep treats pre-existing files as
		// already quiet.
		w.paths[path] = &tracked{state: statePending, lastEvent: backdated}
	}
	w.sweep(ctx)
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	if Ignored(path) {
		return
	}
	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		delete(w.paths, path)
	case event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write):
		entry := w.paths[path]
		if entry == nil {
			entry = &tracked{}
			w.paths[path] = entry
		}
		entry.state = statePending
		entry.lastEvent = w.now()
	}
}

// sweep promotes quiet pending paths to submitted.
func (w *Watcher) sweep(ctx context.Context) {
	now := w.now()
	for path, entry := range w.paths {
		if entry.state != statePending {
			continue
		}
		if now.Sub(entry.lastEvent) < w.debounce {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			// Gone between event and sweep.
			delete(w.paths, path)
			continue
		}
		if info.IsDir() {
			delete(w.paths, path)
			continue
		}
		if info.Size() == 0 {
			// Zero-byte files stay pending until content arrives.
			continue
		}
		if entry.submittedMod.Equal(info.ModTime()) && entry.submittedSize == info.Size() {
			entry.state = stateSubmitted
			continue
		}
		if w.alreadyUploaded(ctx, path, info) {
			entry.state = stateSubmitted
			entry.submittedMod = info.ModTime()
			entry.submittedSize = info.Size()
			continue
		}
		if err := w.submit(path); err != nil {
			w.logger.Error("submit failed; will retry next sweep",
				logging.String(logging.FieldSource, path),
				logging.Error(err))
			continue
		}
		entry.state = stateSubmitted
		entry.submittedMod = info.ModTime()
		entry.submittedSize = info.Size()
		w.logger.Info("file submitted for upload",
			logging.String(logging.FieldSource, path),
			logging.Int64("size", info.Size()),
			logging.String(logging.FieldEventType, "watcher_submit"))
	}
}

// alreadyUploaded consults the persisted upload markers so daemon restarts
// do not resubmit unchanged files.
func (w *Watcher) alreadyUploaded(ctx context.Context, path string, info os.FileInfo) bool {
	record, err := w.store.LookupUpload(ctx, path)
	if err != nil {
		w.logger.Warn("upload marker lookup failed; submitting anyway",
			logging.String(logging.FieldSource, path),
			logging.Error(err))
		return false
	}
	if record == nil {
		return false
	}
	return record.Size == info.Size() && record.ModTime.Equal(info.ModTime().UTC())
}
