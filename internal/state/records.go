package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AssetRecord tracks one remote asset across poll cycles.
type AssetRecord struct {
	AssetID      string
	Name         string
	LastStatus   string
	Downloaded   bool
	DownloadedAt *time.Time
	LastSeenAt   time.Time
}

// UploadRecord marks a local file as already uploaded so watcher restarts do
// not resubmit it.
type UploadRecord struct {
	SourcePath string
	AssetID    string
	Size       int64
	ModTime    time.Time
	UploadedAt time.Time
}

// GetAsset returns the record for assetID, or nil when the asset has not
// been seen.
func (s *Store) GetAsset(ctx context.Context, assetID string) (*AssetRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT asset_id, name, last_status, downloaded, downloaded_at, last_seen_at
         FROM assets WHERE asset_id = ?`, assetID)
	record, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return record, nil
}

// UpsertAsset inserts or updates the tracking record for one asset. The
// downloaded flag is only ever raised through MarkDownloaded, so upserts from
// poll cycles cannot regress it.
func (s *Store) UpsertAsset(ctx context.Context, record AssetRecord) error {
	if record.AssetID == "" {
		return errors.New("asset record requires an asset id")
	}
	lastSeen := record.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = time.Now().UTC()
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO assets (asset_id, name, last_status, downloaded, downloaded_at, last_seen_at)
         VALUES (?, ?, ?, ?, NULL, ?)
         ON CONFLICT(asset_id) DO UPDATE SET
             name = excluded.name,
             last_status = excluded.last_status,
             last_seen_at = excluded.last_seen_at`,
		record.AssetID,
		record.Name,
		record.LastStatus,
		boolToInt(record.Downloaded),
		lastSeen.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert asset %s: %w", record.AssetID, err)
	}
	return nil
}

// MarkDownloaded raises the downloaded flag for an asset. Call only after
// the local bytes are durably written.
func (s *Store) MarkDownloaded(ctx context.Context, assetID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	err := s.execWithRetry(ctx,
		`UPDATE assets SET downloaded = 1, downloaded_at = ? WHERE asset_id = ?`,
		at.UTC().Format(time.RFC3339Nano), assetID)
	if err != nil {
		return fmt.Errorf("mark downloaded %s: %w", assetID, err)
	}
	return nil
}

// ListAssets returns all tracked assets ordered by most recently seen.
func (s *Store) ListAssets(ctx context.Context) ([]*AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, name, last_status, downloaded, downloaded_at, last_seen_at
         FROM assets ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var records []*AssetRecord
	for rows.Next() {
		record, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ListDownloaded returns the set of asset ids already downloaded.
func (s *Store) ListDownloaded(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT asset_id FROM assets WHERE downloaded = 1`)
	if err != nil {
		return nil, fmt.Errorf("list downloaded: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan downloaded id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// RecordUpload stores the already-uploaded marker for a local source path.
func (s *Store) RecordUpload(ctx context.Context, record UploadRecord) error {
	if record.SourcePath == "" || record.AssetID == "" {
		return errors.New("upload record requires source path and asset id")
	}
	uploadedAt := record.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	err := s.execWithRetry(ctx,
		`INSERT INTO uploads (source_path, asset_id, size, modtime, uploaded_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(source_path) DO UPDATE SET
             asset_id = excluded.asset_id,
             size = excluded.size,
             modtime = excluded.modtime,
             uploaded_at = excluded.uploaded_at`,
		record.SourcePath,
		record.AssetID,
		record.Size,
		record.ModTime.UTC().Format(time.RFC3339Nano),
		uploadedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record upload %s: %w", record.SourcePath, err)
	}
	return nil
}

// LookupUpload returns the upload marker for a source path, or nil.
func (s *Store) LookupUpload(ctx context.Context, sourcePath string) (*UploadRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source_path, asset_id, size, modtime, uploaded_at
         FROM uploads WHERE source_path = ?`, sourcePath)

	var record UploadRecord
	var modtime, uploadedAt string
	err := row.Scan(&record.SourcePath, &record.AssetID, &record.Size, &modtime, &uploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup upload %s: %w", sourcePath, err)
	}
	if record.ModTime, err = time.Parse(time.RFC3339Nano, modtime); err != nil {
		return nil, fmt.Errorf("parse upload modtime: %w", err)
	}
	if record.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAt); err != nil {
		return nil, fmt.Errorf("parse upload timestamp: %w", err)
	}
	return &record, nil
}

// Counts returns tracked/downloaded asset totals for status reporting.
func (s *Store) Counts(ctx context.Context) (tracked, downloaded int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(downloaded), 0) FROM assets`).Scan(&tracked, &downloaded)
	if err != nil {
		return 0, 0, fmt.Errorf("count assets: %w", err)
	}
	return tracked, downloaded, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*AssetRecord, error) {
	var record AssetRecord
	var downloaded int
	var downloadedAt sql.NullString
	var lastSeen string
	if err := row.Scan(&record.AssetID, &record.Name, &record.LastStatus, &downloaded, &downloadedAt, &lastSeen); err != nil {
		return nil, err
	}
	record.Downloaded = downloaded != 0
	if downloadedAt.Valid && downloadedAt.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, downloadedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse downloaded_at: %w", err)
		}
		record.DownloadedAt = &ts
	}
	ts, err := time.Parse(time.RFC3339Nano, lastSeen)
	if err != nil {
		return nil, fmt.Errorf("parse last_seen_at: %w", err)
	}
	record.LastSeenAt = ts
	return &record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
