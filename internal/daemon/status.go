package daemon

import (
	"context"
	"os"

	"github.com/LukeVan/frame-io-max-activation/internal/ipc"
	"github.com/LukeVan/frame-io-max-activation/internal/logging"
	"github.com/LukeVan/frame-io-max-activation/internal/notifications"
)

// Ping implements ipc.Backend.
func (d *Daemon) Ping() ipc.PingResponse {
	return ipc.PingResponse{PID: os.Getpid(), StartedAt: d.startedAt}
}

// Status implements ipc.Backend.
func (d *Daemon) Status(ctx context.Context) (ipc.StatusResponse, error) {
	tracked, downloaded, err := d.store.Counts(ctx)
	if err != nil {
		return ipc.StatusResponse{}, err
	}

	d.mu.Lock()
	lastError := d.lastError
	d.mu.Unlock()

	inflight := 0
	if d.poller != nil {
		inflight = d.poller.Inflight()
	}
	return ipc.StatusResponse{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		StartedAt:         d.startedAt,
		WatchDir:          d.cfg.Paths.WatchDir,
		DownloadDir:       d.cfg.Paths.DownloadDir,
		QueueDepth:        d.pool.Depth(),
		InflightDownloads: inflight,
		TrackedAssets:     tracked,
		DownloadedAssets:  downloaded,
		RequestsPerMinute: d.limiter.Limit(),
		LastError:         lastError,
		StateDBPath:       d.store.Path(),
		LockPath:          d.lockPath,
	}, nil
}

// StateList implements ipc.Backend.
func (d *Daemon) StateList(ctx context.Context) (ipc.StateListResponse, error) {
	records, err := d.store.ListAssets(ctx)
	if err != nil {
		return ipc.StateListResponse{}, err
	}
	assets := make([]ipc.TrackedAsset, 0, len(records))
	for _, r := range records {
		assets = append(assets, ipc.TrackedAsset{
			AssetID:      r.AssetID,
			Name:         r.Name,
			LastStatus:   r.LastStatus,
			Downloaded:   r.Downloaded,
			DownloadedAt: r.DownloadedAt,
			LastSeenAt:   r.LastSeenAt,
		})
	}
	return ipc.StateListResponse{Assets: assets}, nil
}

// RateLimit implements ipc.Backend. A non-positive value queries the current
// budget without changing it; changes take effect at the limiter's next
// window refill.
func (d *Daemon) RateLimit(ctx context.Context, requestsPerMinute int) (ipc.RateLimitResponse, error) {
	if requestsPerMinute > 0 {
		d.limiter.SetLimit(requestsPerMinute)
		d.logger.Info("rate limit changed",
			logging.Int("requests_per_minute", requestsPerMinute),
			logging.String(logging.FieldEventType, "rate_limit_changed"))
		return ipc.RateLimitResponse{RequestsPerMinute: requestsPerMinute}, nil
	}
	return ipc.RateLimitResponse{RequestsPerMinute: d.limiter.Limit()}, nil
}

// TestNotification implements ipc.Backend.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.Publish(ctx, notifications.EventTest, nil)
}
