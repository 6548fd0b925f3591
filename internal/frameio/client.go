package frameio

import (
	"context"
	"io"
	"time"
)

// Asset statuses reported by the remote service for uploaded files.
const (
	StatusCreated     = "created"
	StatusUploaded    = "uploaded"
	StatusTranscoding = "transcoding"
	StatusTranscoded  = "transcoded"
	StatusFailed      = "failed"
)

// Asset is a remote file-like object with metadata fields attached.
type Asset struct {
	ID        string
	Name      string
	Status    string
	Size      int64
	Fields    map[string]string
	UpdatedAt time.Time

	downloadURL string
}

// UploadTarget identifies a freshly created asset and the destination its
// bytes must be transferred to.
type UploadTarget struct {
	AssetID   string
	UploadURL string
}

// Client is the remote service capability the automation core consumes. Every
// call counts as one API request and must sit behind a rate-limiter permit.
// Implementations must return errors classifiable by services.IsTransient.
type Client interface {
	// CreateAsset registers a new file in the target folder and returns the
	// destination its bytes should be transferred to.
	CreateAsset(ctx context.Context, folderID, name string, size int64) (UploadTarget, error)
	// PutBytes transfers file content to a previously created upload target.
	PutBytes(ctx context.Context, target UploadTarget, body io.Reader, size int64) error
	// GetAsset fetches the current processing status and metadata fields of
	// one asset.
	GetAsset(ctx context.Context, assetID string) (Asset, error)
	// ListAssets returns the file assets directly under a remote folder,
	// metadata fields included.
	ListAssets(ctx context.Context, folderID string) ([]Asset, error)
	// SetField writes one metadata field value on an asset.
	SetField(ctx context.Context, assetID, fieldDefinitionID, value string) error
	// Download opens a stream over the asset's original bytes. The caller
	// closes the returned reader.
	Download(ctx context.Context, assetID string) (io.ReadCloser, error)
}

// Ready reports whether an asset status means processing finished
// successfully.
func Ready(status string) bool {
	switch status {
	case StatusTranscoded, "ready", "complete":
		return true
	}
	return false
}

// Terminal reports whether an asset status is a remote-side terminal failure.
func Terminal(status string) bool {
	switch status {
	case StatusFailed, "error", "cancelled":
		return true
	}
	return false
}
