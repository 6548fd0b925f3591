// Package uploader drives the multi-step upload protocol for one local
// file: create the remote asset, transfer the bytes, wait for remote
// processing, then attach extracted metadata.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/LukeVan/frame-io-max-activation/internal/frameio"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/metadata"
	"github.com/LukeVan/frame-io-max-activation/internal/notifications"
	"github.com/LukeVan/frame-io-max-activation/internal/ratelimit"
	"github.com/LukeVan/frame-io-max-activation/internal/services"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

const (
	stepAttempts = 3
	pollAttempts = 10
)

// Options wires an Uploader's collaborators.
type Options struct {
	Client          frameio.Client
	Limiter         *ratelimit.Limiter
	Store           *state.Store
	Notifier        notifications.Service
	Logger          *slog.Logger
	TargetFolderID  string
	ExtractMetadata bool
	Mappings        map[string]string
}

// Uploader executes upload tasks against the remote service.
type Uploader struct {
	client          frameio.Client
	limiter         *ratelimit.Limiter
	store           *state.Store
	notifier        notifications.Service
	logger          *slog.Logger
	folderID        string
	extractMetadata bool
	mappings        map[string]string

	// Retry pacing, shortened in tests.
	stepDelay time.Duration
	pollBase  time.Duration
	pollCap   time.Duration
}

// New builds an Uploader. Client, Limiter, Store and TargetFolderID are
// required.
func New(opts Options) (*Uploader, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("uploader requires a client")
	}
	if opts.Limiter == nil {
		return nil, fmt.Errorf("uploader requires a rate limiter")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("uploader requires a state store")
	}
	if opts.TargetFolderID == "" {
		return nil, fmt.Errorf("uploader requires a target folder id")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.Noop()
	}
	return &Uploader{
		client:          opts.Client,
		limiter:         opts.Limiter,
		store:           opts.Store,
		notifier:        notifier,
		logger:          logger.With(logging.String(logging.FieldComponent, "uploader")),
		folderID:        opts.TargetFolderID,
		extractMetadata: opts.ExtractMetadata,
		mappings:        opts.Mappings,
		stepDelay:       2 * time.Second,
		pollBase:        time.Second,
		pollCap:         30 * time.Second,
	}, nil
}

// Task uploads one local file. It is scheduled on the worker pool.
type Task struct {
	SourcePath string

	up *Uploader
}

// NewTask binds a source path to this uploader for pool submission.
func (u *Uploader) NewTask(sourcePath string) *Task {
	return &Task{SourcePath: sourcePath, up: u}
}

func (t *Task) Describe() string {
	return "upload " + filepath.Base(t.SourcePath)
}

func (t *Task) Execute(ctx context.Context) error {
	return t.up.Upload(ctx, t.SourcePath)
}

// Upload runs the full protocol for sourcePath. Failures are logged and
// notified here; the returned error reports the outcome to the pool.
func (u *Uploader) Upload(ctx context.Context, sourcePath string) error {
	name := filepath.Base(sourcePath)
	logger := u.logger.With(logging.String(logging.FieldSource, sourcePath))

	info, err := validateSource(sourcePath)
	if err != nil {
		logger.Error("source validation failed", logging.Error(err),
			logging.String(logging.FieldEventType, "upload_invalid_source"))
		return err
	}

	logger.Info("upload started",
		logging.Int64("size", info.Size()),
		logging.String(logging.FieldEventType, "upload_start"))

	target, err := u.createAsset(ctx, name, info.Size())
	if err != nil {
		return u.fail(ctx, logger, name, "create asset", err)
	}
	logger = logger.With(logging.String(logging.FieldAssetID, target.AssetID))

	if err := u.transferBytes(ctx, sourcePath, target, info.Size()); err != nil {
		return u.fail(ctx, logger, name, "transfer bytes", err)
	}

	if err := u.awaitReady(ctx, logger, target.AssetID); err != nil {
		return u.fail(ctx, logger, name, "await processing", err)
	}

	if u.extractMetadata && len(u.mappings) > 0 {
		u.applyMetadata(ctx, logger, sourcePath, target.AssetID)
	}

	if err := u.store.RecordUpload(ctx, state.UploadRecord{
		SourcePath: sourcePath,
		AssetID:    target.AssetID,
		Size:       info.Size(),
		ModTime:    info.ModTime(),
	}); err != nil {
		return u.fail(ctx, logger, name, "record upload", err)
	}

	logger.Info("upload completed",
		logging.String(logging.FieldEventType, "upload_complete"))
	if err := u.notifier.Publish(ctx, notifications.EventUploadCompleted, notifications.Payload{
		"filename": name,
		"asset_id": target.AssetID,
	}); err != nil {
		logger.Debug("upload notification failed", logging.Error(err))
	}
	return nil
}

func validateSource(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidSource, "uploader", "validate",
			"source file missing", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrInvalidSource, "uploader", "validate",
			fmt.Sprintf("source is a directory: %s", path), nil)
	}
	if info.Size() == 0 {
		return nil, services.Wrap(services.ErrInvalidSource, "uploader", "validate",
			fmt.Sprintf("source is empty: %s", path), nil)
	}
	return info, nil
}

func (u *Uploader) createAsset(ctx context.Context, name string, size int64) (frameio.UploadTarget, error) {
	var target frameio.UploadTarget
	err := u.retryStep(ctx, func() error {
		if err := u.limiter.Acquire(ctx); err != nil {
			return err
		}
		created, err := u.client.CreateAsset(ctx, u.folderID, name, size)
		if err != nil {
			return err
		}
		target = created
		return nil
	})
	return target, err
}

func (u *Uploader) transferBytes(ctx context.Context, sourcePath string, target frameio.UploadTarget, size int64) error {
	return u.retryStep(ctx, func() error {
		if err := u.limiter.Acquire(ctx); err != nil {
			return err
		}
		// Reopen per attempt so a failed transfer restarts from byte zero.
		f, err := os.Open(sourcePath)
		if err != nil {
			return services.Wrap(services.ErrInvalidSource, "uploader", "transfer",
				"source file disappeared", err)
		}
		defer f.Close()
		return u.client.PutBytes(ctx, target, f, size)
	})
}

// retryStep retries transient failures with linear backoff. Permanent
// failures surface immediately.
func (u *Uploader) retryStep(ctx context.Context, step func() error) error {
	var lastErr error
	for attempt := 1; attempt <= stepAttempts; attempt++ {
		lastErr = step()
		if lastErr == nil {
			return nil
		}
		if !services.IsTransient(lastErr) || attempt == stepAttempts {
			return lastErr
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*u.stepDelay); err != nil {
			return err
		}
	}
	return lastErr
}

// awaitReady polls asset status until remote processing settles.
func (u *Uploader) awaitReady(ctx context.Context, logger *slog.Logger, assetID string) error {
	delay := u.pollBase
	for attempt := 1; attempt <= pollAttempts; attempt++ {
		if err := u.limiter.Acquire(ctx); err != nil {
			return err
		}
		asset, err := u.client.GetAsset(ctx, assetID)
		switch {
		case err != nil && services.IsTransient(err):
			logger.Debug("status poll failed", logging.Int("attempt", attempt), logging.Error(err))
		case err != nil:
			return err
		case frameio.Ready(asset.Status):
			return nil
		case frameio.Terminal(asset.Status):
			return services.Wrap(services.ErrProcessingFailed, "uploader", "await",
				fmt.Sprintf("remote processing failed with status %q", asset.Status), nil)
		default:
			logger.Debug("asset not ready",
				logging.Int("attempt", attempt),
				logging.String("status", asset.Status))
		}
		if attempt == pollAttempts {
			break
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > u.pollCap {
			delay = u.pollCap
		}
	}
	return services.Wrap(services.ErrTransientNetwork, "uploader", "await",
		"asset never became ready", nil)
}

// applyMetadata attaches extracted fields. Failures downgrade to warnings
// so a metadata hiccup never voids a finished upload.
func (u *Uploader) applyMetadata(ctx context.Context, logger *slog.Logger, sourcePath, assetID string) {
	fields, err := metadata.Extract(sourcePath, u.mappings)
	if err != nil {
		logger.Warn("metadata extraction failed; upload kept",
			logging.Error(err),
			logging.String(logging.FieldEventType, "metadata_skipped"))
		return
	}
	for _, field := range fields {
		if err := u.setFieldOnce(ctx, assetID, field); err != nil {
			logger.Warn("metadata field not applied; upload kept",
				logging.String("field_definition_id", field.FieldDefinitionID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "metadata_skipped"))
		}
	}
}

func (u *Uploader) setFieldOnce(ctx context.Context, assetID string, field metadata.Field) error {
	if err := u.limiter.Acquire(ctx); err != nil {
		return err
	}
	err := u.client.SetField(ctx, assetID, field.FieldDefinitionID, field.Value)
	if err == nil || !services.IsTransient(err) {
		return err
	}
	if err := sleepCtx(ctx, u.stepDelay); err != nil {
		return err
	}
	if err := u.limiter.Acquire(ctx); err != nil {
		return err
	}
	return u.client.SetField(ctx, assetID, field.FieldDefinitionID, field.Value)
}

func (u *Uploader) fail(ctx context.Context, logger *slog.Logger, name, step string, err error) error {
	logger.Error("upload failed",
		logging.String("step", step),
		logging.Error(err),
		logging.String(logging.FieldEventType, "upload_failed"))
	if notifyErr := u.notifier.Publish(ctx, notifications.EventUploadFailed, notifications.Payload{
		"filename": name,
		"error":    err,
	}); notifyErr != nil {
		logger.Debug("failure notification failed", logging.Error(notifyErr))
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
