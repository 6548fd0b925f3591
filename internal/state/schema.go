package state

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/LukeVan/frame-io-max-activation/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; mismatched databases require an explicit 'fiomax state reset'.
const schemaVersion = 1

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return services.Wrap(services.ErrStateCorruption, "state", "inspect schema", s.path, err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return services.Wrap(services.ErrStateCorruption, "state", "read schema version", s.path, err)
	}
	if version != schemaVersion {
		return services.Wrap(services.ErrStateCorruption, "state", "schema version",
			fmt.Sprintf("database has version %d, expected %d (run 'fiomax state reset')", version, schemaVersion), nil)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tracking tables and recreates the schema. Used by the
// explicit operator reset only; nothing calls it automatically.
func (s *Store) Reset(ctx context.Context) error {
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS assets",
		"DROP TABLE IF EXISTS uploads",
		"DROP TABLE IF EXISTS schema_version",
	} {
		if err := s.execWithRetry(ctx, stmt); err != nil {
			return fmt.Errorf("reset state: %w", err)
		}
	}
	return s.createSchema(ctx)
}
