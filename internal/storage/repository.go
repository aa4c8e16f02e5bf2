// Package storage keeps the token slot in a local SQLite file.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	applog "finboard/internal/log"
	"finboard/internal/tokens"

	_ "modernc.org/sqlite"
)

// SlotStore implements tokens.Store on a kv_slots table.
type SlotStore struct {
	db      *sql.DB
	logger  *applog.Logger
	version uint
}

// OpenSlotStore opens or creates the database at path and migrates it.
func OpenSlotStore(ctx context.Context, path string, logger *applog.Logger) (*SlotStore, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	version, err := migrateSchema(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}

	s := &SlotStore{db: db, logger: logger.WithComponent(applog.ComponentStorage), version: version}
	s.logger.Debug("Token slot database ready", "path", path, "schema_version", version)
	return s, nil
}

// SchemaVersion is the migration version the database was opened at.
func (s *SlotStore) SchemaVersion() uint { return s.version }

// Ping reports whether the database still answers.
func (s *SlotStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SlotStore) Close() error {
	return s.db.Close()
}

func (s *SlotStore) Get(ctx context.Context) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_slots WHERE key = ?`, tokens.Key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("read token slot: %w", err)
	}
	value = strings.TrimSpace(value)
	return value, value != "", nil
}

func (s *SlotStore) Set(ctx context.Context, token string) error {
	const upsert = `INSERT INTO kv_slots (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, upsert, tokens.Key, strings.TrimSpace(token)); err != nil {
		return fmt.Errorf("write token slot: %w", err)
	}
	s.logger.InfoContext(ctx, "Token slot written")
	return nil
}

// DeleteIf clears the slot in one statement when its value is token.
func (s *SlotStore) DeleteIf(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_slots WHERE key = ? AND value = ?`,
		tokens.Key, strings.TrimSpace(token))
	if err != nil {
		return false, fmt.Errorf("delete token slot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token slot: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Token slot cleared")
	}
	return n > 0, nil
}

func (s *SlotStore) Delete(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_slots WHERE key = ?`, tokens.Key)
	if err != nil {
		return fmt.Errorf("delete token slot: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.InfoContext(ctx, "Token slot cleared")
	}
	return nil
}
