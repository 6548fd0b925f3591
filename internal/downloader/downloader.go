// Package downloader fetches approved assets into the local download
// directory. Writes are atomic so a crash mid-transfer never leaves a
// partial file, and the state store is only updated after the bytes are
// durable on disk.
package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/fileutil"
	"github.com/LukeVan/frame-io-max-activation/internal/frameio"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/notifications"
	"github.com/LukeVan/frame-io-max-activation/internal/ratelimit"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

// Options wires a Downloader's collaborators.
type Options struct {
	Client   frameio.Client
	Limiter  *ratelimit.Limiter
	Store    *state.Store
	Notifier notifications.Service
	Logger   *slog.Logger
	DestDir  string
}

// Downloader executes download tasks for approved assets.
type Downloader struct {
	client   frameio.Client
	limiter  *ratelimit.Limiter
	store    *state.Store
	notifier notifications.Service
	logger   *slog.Logger
	destDir  string
}

// New builds a Downloader. Client, Limiter, Store and DestDir are required.
func New(opts Options) (*Downloader, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("downloader requires a client")
	}
	if opts.Limiter == nil {
		return nil, fmt.Errorf("downloader requires a rate limiter")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("downloader requires a state store")
	}
	if opts.DestDir == "" {
		return nil, fmt.Errorf("downloader requires a destination directory")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Downloader{
		client:   opts.Client,
		limiter:  opts.Limiter,
		store:    opts.Store,
		notifier: notifier,
		logger:   logger.With(logging.String(logging.FieldComponent, "downloader")),
		destDir:  opts.DestDir,
	}, nil
}

// Task downloads one approved asset. Done, when set, is called after the
// task finishes regardless of outcome; the poller uses it to clear its
// in-flight set.
type Task struct {
	AssetID   string
	AssetName string
	Done      func(assetID string, err error)

	dl *Downloader
}

// NewTask binds an asset to this downloader for pool submission.
func (d *Downloader) NewTask(assetID, assetName string, done func(string, error)) *Task {
	return &Task{AssetID: assetID, AssetName: assetName, Done: done, dl: d}
}

func (t *Task) Describe() string {
	return "download " + t.AssetName
}

func (t *Task) Execute(ctx context.Context) error {
	err := t.dl.Download(ctx, t.AssetID, t.AssetName)
	if t.Done != nil {
		t.Done(t.AssetID, err)
	}
	return err
}

// Download streams the asset into the destination directory and marks it
// downloaded once the write is durable.
func (d *Downloader) Download(ctx context.Context, assetID, assetName string) error {
	logger := d.logger.With(
		logging.String(logging.FieldAssetID, assetID),
		logging.String("asset_name", assetName))

	if err := d.limiter.Acquire(ctx); err != nil {
		return err
	}
	body, err := d.client.Download(ctx, assetID)
	if err != nil {
		return d.fail(ctx, logger, assetName, err)
	}
	defer body.Close()

	dest := fileutil.UniquePath(filepath.Join(d.destDir, filepath.Base(assetName)))
	written, err := fileutil.WriteStreamAtomic(dest, body)
	if err != nil {
		return d.fail(ctx, logger, assetName, err)
	}

	// Only a durable local copy flips the downloaded flag; a crash before
	// this point means the next poll cycle fetches the asset again.
	if err := d.store.MarkDownloaded(ctx, assetID, time.Now()); err != nil {
		return d.fail(ctx, logger, assetName, err)
	}

	logger.Info("download completed",
		logging.String("destination", dest),
		logging.Int64("bytes", written),
		logging.String(logging.FieldEventType, "download_complete"))
	if err := d.notifier.Publish(ctx, notifications.EventDownloadCompleted, notifications.Payload{
		"name":        assetName,
		"destination": dest,
	}); err != nil {
		logger.Debug("download notification failed", logging.Error(err))
	}
	return nil
}

func (d *Downloader) fail(ctx context.Context, logger *slog.Logger, assetName string, err error) error {
	logger.Error("download failed",
		logging.Error(err),
		logging.String(logging.FieldEventType, "download_failed"))
	if notifyErr := d.notifier.Publish(ctx, notifications.EventDownloadFailed, notifications.Payload{
		"name":  assetName,
		"error": err,
	}); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
	return err
}
