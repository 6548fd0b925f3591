// Package daemon is the composition root: it owns the state store, rate
// limiter, worker pool, watcher, poller and IPC server, enforces
// single-instance execution, and sequences startup and shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"github.com/LukeVan/frame-io-max-activation/internal/config"
	"github.com/LukeVan/frame-io-max-activation/internal/downloader"
	"github.com/LukeVan/frame-io-max-activation/internal/frameio"
	"github.com/LukeVan/frame-io-max-activation/internal/ipc"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/notifications"
	"github.com/LukeVan/frame-io-max-activation/internal/poller"
	"github.com/LukeVan/frame-io-max-activation/internal/pool"
	"github.com/LukeVan/frame-io-max-activation/internal/preflight"
	"github.com/LukeVan/frame-io-max-activation/internal/ratelimit"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
	"github.com/LukeVan/frame-io-max-activation/internal/uploader"
	"github.com/LukeVan/frame-io-max-activation/internal/watcher"
)

// Options configures daemon construction. Client may be injected for
// tests; when nil the REST client is built from config.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Client frameio.Client
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *state.Store
	notifier notifications.Service
	limiter  *ratelimit.Limiter
	pool     *pool.Pool
	uploader *uploader.Uploader
	dl       *downloader.Downloader
	watcher  *watcher.Watcher
	poller   *poller.Poller
	ipcSrv   *ipc.Server

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu        sync.Mutex
	lastError string
	fatalErr  error
}

// New constructs a daemon with initialized dependencies. Preflight checks
// run here; any failure aborts construction.
func New(ctx context.Context, opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, f := range failed {
			logger.Error("preflight check failed",
				logging.String("check", f.Name),
				logging.String("detail", f.Detail))
			details = append(details, fmt.Sprintf("%s: %s", f.Name, f.Detail))
		}
		return nil, fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	store, err := state.Open(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	client := opts.Client
	if client == nil {
		client = frameio.NewREST(cfg)
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifications.NewService(cfg),
		limiter:  ratelimit.New(cfg.API.RequestsPerMinute),
		lockPath: filepath.Join(cfg.Paths.LogDir, "fiomaxd.lock"),
		pidPath:  filepath.Join(cfg.Paths.LogDir, "fiomaxd.pid"),
	}
	d.lock = flock.New(d.lockPath)

	d.pool, err = pool.New(pool.Options{
		Workers:       cfg.Upload.Workers,
		HighWaterMark: cfg.Upload.HighWaterMark,
		Logger:        logger,
		Observer:      d.observeTask,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.FrameIO.TargetFolderID != "" {
		d.uploader, err = uploader.New(uploader.Options{
			Client:          client,
			Limiter:         d.limiter,
			Store:           store,
			Notifier:        d.notifier,
			Logger:          logger,
			TargetFolderID:  cfg.FrameIO.TargetFolderID,
			ExtractMetadata: cfg.Upload.ExtractMetadata,
			Mappings:        cfg.Metadata.Mappings,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		d.watcher, err = watcher.New(watcher.Options{
			Dir:      cfg.Paths.WatchDir,
			Debounce: cfg.DebounceWindow(),
			Store:    store,
			Logger:   logger,
			Submit:   d.submitUpload,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	if cfg.FrameIO.MonitorFolderID != "" {
		d.dl, err = downloader.New(downloader.Options{
			Client:   client,
			Limiter:  d.limiter,
			Store:    store,
			Notifier: d.notifier,
			Logger:   logger,
			DestDir:  cfg.Paths.DownloadDir,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		d.poller, err = poller.New(poller.Options{
			Client:         client,
			Limiter:        d.limiter,
			Store:          store,
			Logger:         logger,
			FolderID:       cfg.FrameIO.MonitorFolderID,
			Interval:       cfg.PollInterval(),
			StatusFields:   cfg.Monitor.StatusFields,
			ApprovedValues: cfg.Monitor.ApprovedValues,
			Enqueue:        d.enqueueDownload,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return d, nil
}

func (d *Daemon) submitUpload(path string) error {
	return d.pool.Submit(d.uploader.NewTask(path))
}

func (d *Daemon) enqueueDownload(assetID, assetName string) error {
	task := d.dl.NewTask(assetID, assetName, func(id string, err error) {
		d.poller.Release(id)
	})
	return d.pool.Submit(task)
}

func (d *Daemon) observeTask(result pool.Result) {
	if result.Err == nil || errors.Is(result.Err, context.Canceled) {
		return
	}
	d.mu.Lock()
	d.lastError = fmt.Sprintf("%s: %v", result.Task.Describe(), result.Err)
	d.mu.Unlock()
}

// Start acquires the instance lock and launches the pipeline.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another fiomax daemon instance is already running")
	}
	if err := os.WriteFile(d.pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.pool.Start(d.ctx); err != nil {
		d.releaseLock()
		return err
	}

	if d.watcher != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.watcher.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.fatal("watcher", err)
			}
		}()
	}
	if d.poller != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.poller.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.fatal("poller", err)
			}
		}()
	}

	d.ipcSrv, err = ipc.NewServer(d.ctx, d.cfg.SocketPath(), d, d.logger)
	if err != nil {
		d.logger.Warn("IPC server unavailable; status commands will not work",
			logging.Error(err))
	} else {
		d.ipcSrv.Serve()
	}

	d.running.Store(true)
	d.startedAt = time.Now()
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("watch_dir", d.cfg.Paths.WatchDir),
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

// fatal records a subsystem failure and brings the daemon down.
func (d *Daemon) fatal(component string, err error) {
	d.mu.Lock()
	d.lastError = fmt.Sprintf("%s: %v", component, err)
	d.fatalErr = fmt.Errorf("%s: %w", component, err)
	d.mu.Unlock()
	d.logger.Error("subsystem failed; shutting down",
		logging.String(logging.FieldComponent, component),
		logging.Error(err),
		logging.String(logging.FieldEventType, "daemon_fatal"))
	if notifyErr := d.notifier.Publish(context.Background(), notifications.EventError, notifications.Payload{
		"error":   err,
		"context": component,
	}); notifyErr != nil {
		d.logger.Debug("error notification failed", logging.Error(notifyErr))
	}
	if d.cancel != nil {
		d.cancel()
	}
}

// Stop shuts the pipeline down in order: stop intake, drain workers with
// the configured grace, then release the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.pool.Stop(d.cfg.ShutdownGrace())
	if d.ipcSrv != nil {
		d.ipcSrv.Close()
		d.ipcSrv = nil
	}
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stop"))
}

func (d *Daemon) releaseLock() {
	if err := os.Remove(d.pidPath); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to remove pid file", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Wait blocks until the daemon's run context ends.
func (d *Daemon) Wait() {
	if d.ctx != nil {
		<-d.ctx.Done()
	}
}

// Err reports the subsystem failure that brought the daemon down, or nil
// after a clean shutdown.
func (d *Daemon) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatalErr
}
