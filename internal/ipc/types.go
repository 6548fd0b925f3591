package ipc

import "time"

// PingRequest checks daemon liveness.
type PingRequest struct{}

// PingResponse confirms the daemon is serving IPC.
type PingResponse struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Running           bool      `json:"running"`
	PID               int       `json:"pid"`
	StartedAt         time.Time `json:"started_at"`
	WatchDir          string    `json:"watch_dir"`
	DownloadDir       string    `json:"download_dir"`
	QueueDepth        int       `json:"queue_depth"`
	InflightDownloads int       `json:"inflight_downloads"`
	TrackedAssets     int64     `json:"tracked_assets"`
	DownloadedAssets  int64     `json:"downloaded_assets"`
	RequestsPerMinute int       `json:"requests_per_minute"`
	LastError         string    `json:"last_error"`
	StateDBPath       string    `json:"state_db_path"`
	LockPath          string    `json:"lock_path"`
}

// StateListRequest fetches tracked assets from the state store.
type StateListRequest struct{}

// TrackedAsset is the wire form of one state store asset record.
type TrackedAsset struct {
	AssetID      string     `json:"asset_id"`
	Name         string     `json:"name"`
	LastStatus   string     `json:"last_status"`
	Downloaded   bool       `json:"downloaded"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
}

// StateListResponse contains tracked asset entries.
type StateListResponse struct {
	Assets []TrackedAsset `json:"assets"`
}

// RateLimitRequest reads or changes the outbound API request budget. A
// RequestsPerMinute of zero queries without changing anything.
type RateLimitRequest struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

// RateLimitResponse reports the effective per-minute request budget.
type RateLimitResponse struct {
	RequestsPerMinute int `json:"requests_per_minute"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
