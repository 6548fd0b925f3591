// Package poller periodically lists the monitored remote folder and
// enqueues downloads for assets whose metadata marks them approved.
// Cycles are strictly sequential; a slow cycle delays the next one rather
// than overlapping it.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/LukeVan/frame-io-max-activation/internal/frameio"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/ratelimit"
	"github.com/LukeVan/frame-io-max-activation/internal/services"
	"github.com/LukeVan/frame-io-max-activation/internal/state"
)

const listAttempts = 3

// Options wires a Poller.
type Options struct {
	Client         frameio.Client
	Limiter        *ratelimit.Limiter
	Store          *state.Store
	Logger         *slog.Logger
	FolderID       string
	Interval       time.Duration
	StatusFields   []string
	ApprovedValues []string
	// Enqueue schedules a download for an approved asset. The poller calls
	// Release when the download finishes, successfully or not.
	Enqueue func(assetID, assetName string) error
}

// Poller detects approved assets in the monitored folder.
type Poller struct {
	client   frameio.Client
	limiter  *ratelimit.Limiter
	store    *state.Store
	logger   *slog.Logger
	folderID string
	interval time.Duration
	enqueue  func(assetID, assetName string) error

	statusFields   []string
	approvedValues []string

	listDelay time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New builds a Poller. Client, Limiter, Store, FolderID and Enqueue are
// required.
func New(opts Options) (*Poller, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("poller requires a client")
	}
	if opts.Limiter == nil {
		return nil, fmt.Errorf("poller requires a rate limiter")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("poller requires a state store")
	}
	if opts.FolderID == "" {
		return nil, fmt.Errorf("poller requires a folder id")
	}
	if opts.Enqueue == nil {
		return nil, fmt.Errorf("poller requires an enqueue function")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	fold := cases.Fold()
	statusFields := make([]string, 0, len(opts.StatusFields))
	for _, f := range opts.StatusFields {
		statusFields = append(statusFields, fold.String(f))
	}
	approved := make([]string, 0, len(opts.ApprovedValues))
	for _, v := range opts.ApprovedValues {
		approved = append(approved, fold.String(v))
	}
	return &Poller{
		client:         opts.Client,
		limiter:        opts.Limiter,
		store:          opts.Store,
		logger:         logger.With(logging.String(logging.FieldComponent, "poller")),
		folderID:       opts.FolderID,
		interval:       interval,
		enqueue:        opts.Enqueue,
		statusFields:   statusFields,
		approvedValues: approved,
		listDelay:      2 * time.Second,
		inflight:       make(map[string]struct{}),
	}, nil
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("approval polling started",
		logging.String("folder_id", p.folderID),
		logging.Duration("interval", p.interval),
		logging.String(logging.FieldEventType, "poller_start"))
	for {
		p.Cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// Release clears the in-flight marker for an asset after its download task
// finishes.
func (p *Poller) Release(assetID string) {
	p.mu.Lock()
	delete(p.inflight, assetID)
	p.mu.Unlock()
}

// Inflight returns the number of downloads currently scheduled or running.
func (p *Poller) Inflight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

// Cycle runs one list-and-evaluate pass. Failures are logged; the poller
// survives to the next tick.
func (p *Poller) Cycle(ctx context.Context) {
	assets, err := p.listAssets(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Warn("folder listing failed; retrying next cycle",
			logging.Error(err),
			logging.String(logging.FieldEventType, "poll_failed"))
		return
	}
	for _, asset := range assets {
		if ctx.Err() != nil {
			return
		}
		p.evaluate(ctx, asset)
	}
}

func (p *Poller) listAssets(ctx context.Context) ([]frameio.Asset, error) {
	var lastErr error
	for attempt := 1; attempt <= listAttempts; attempt++ {
		if err := p.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		assets, err := p.client.ListAssets(ctx, p.folderID)
		if err == nil {
			return assets, nil
		}
		lastErr = err
		if !services.IsTransient(err) || attempt == listAttempts {
			return nil, lastErr
		}
		timer := time.NewTimer(time.Duration(attempt) * p.listDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (p *Poller) evaluate(ctx context.Context, asset frameio.Asset) {
	logger := p.logger.With(
		logging.String(logging.FieldAssetID, asset.ID),
		logging.String("asset_name", asset.Name))

	existing, err := p.store.GetAsset(ctx, asset.ID)
	if err != nil {
		logger.Warn("asset record read failed; skipping this cycle", logging.Error(err))
		return
	}

	status := p.currentStatus(asset)
	if err := p.store.UpsertAsset(ctx, state.AssetRecord{
		AssetID:    asset.ID,
		Name:       asset.Name,
		LastStatus: status,
		LastSeenAt: time.Now().UTC(),
	}); err != nil {
		logger.Warn("asset record update failed", logging.Error(err))
	}

	if !p.approved(asset) {
		return
	}
	if existing != nil && existing.Downloaded {
		return
	}
	p.mu.Lock()
	if _, busy := p.inflight[asset.ID]; busy {
		p.mu.Unlock()
		return
	}
	p.inflight[asset.ID] = struct{}{}
	p.mu.Unlock()

	if err := p.enqueue(asset.ID, asset.Name); err != nil {
		p.Release(asset.ID)
		logger.Error("download enqueue failed", logging.Error(err))
		return
	}
	logger.Info("approved asset queued for download",
		logging.String("status", status),
		logging.String(logging.FieldEventType, "approval_detected"))
}

// currentStatus reports the first configured status field's value for
// record keeping, falling back to the asset's processing status.
func (p *Poller) currentStatus(asset frameio.Asset) string {
	fold := cases.Fold()
	for _, field := range p.statusFields {
		for key, value := range asset.Fields {
			if fold.String(key) == field {
				return value
			}
		}
	}
	return asset.Status
}

// approved reports whether any configured status field carries an approved
// value. Matching is case-insensitive on both field names and values.
func (p *Poller) approved(asset frameio.Asset) bool {
	if len(p.statusFields) == 0 || len(p.approvedValues) == 0 {
		return false
	}
	fold := cases.Fold()
	for _, field := range p.statusFields {
		for key, value := range asset.Fields {
			if fold.String(key) != field {
				continue
			}
			folded := fold.String(value)
			for _, want := range p.approvedValues {
				if folded == want {
					return true
				}
			}
		}
	}
	return false
}
