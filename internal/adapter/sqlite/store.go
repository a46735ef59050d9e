// Package sqlite keeps per-device client state in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"juhd/internal/domain"

	_ "modernc.org/sqlite"
)

var _ domain.ClientStateStore = (*Store)(nil)

// Store is a SQLite-backed client state store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates the store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{sqlDB: sqlDB}
	if err := s.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) migrate() error {
	_, err := s.sqlDB.Exec(`CREATE TABLE IF NOT EXISTS client_state (
		device_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (device_id, key)
	)`)
	return err
}

// GetState returns the value stored for (deviceID, key).
func (s *Store) GetState(ctx context.Context, deviceID, key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE device_id = ? AND key = ?`,
		deviceID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get client state: %w", err)
	}
	return value, true, nil
}

// SetState upserts the value for (deviceID, key).
func (s *Store) SetState(ctx context.Context, deviceID, key, value string) error {
	if strings.TrimSpace(deviceID) == "" {
		return fmt.Errorf("device id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO client_state (device_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		deviceID, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("set client state: %w", err)
	}
	return nil
}

// ClearState removes the value for (deviceID, key).
func (s *Store) ClearState(ctx context.Context, deviceID, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM client_state WHERE device_id = ? AND key = ?`, deviceID, key,
	); err != nil {
		return fmt.Errorf("clear client state: %w", err)
	}
	return nil
}
