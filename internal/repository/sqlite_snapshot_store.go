package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// SQLiteSnapshotStore keeps progress in a local key-value table, for
// single-node deployments without Redis.
type SQLiteSnapshotStore struct {
	db *sql.DB
}

const sqliteSnapshotSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);`

// NewSQLiteSnapshotStore ensures the schema exists and returns the store.
func NewSQLiteSnapshotStore(ctx context.Context, db *sql.DB) (*SQLiteSnapshotStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSnapshotSchema); err != nil {
		return nil, fmt.Errorf("create kv_store: %w", err)
	}
	return &SQLiteSnapshotStore{db: db}, nil
}

func (s *SQLiteSnapshotStore) Load(ctx context.Context, userID string) (*model.SessionSnapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store WHERE key = ?`,
		config.CacheKey.StudentProgressKey(userID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	return decodeSnapshot([]byte(raw))
}

func (s *SQLiteSnapshotStore) Save(ctx context.Context, userID string, snap *model.SessionSnapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		config.CacheKey.StudentProgressKey(userID), string(raw), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *SQLiteSnapshotStore) Clear(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE key IN (?, ?)`,
		config.CacheKey.StudentProgressKey(userID),
		config.CacheKey.StudentSubmittedKey(userID),
	)
	return err
}

func (s *SQLiteSnapshotStore) AcquireSubmitGuard(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, '1', ?)
		 ON CONFLICT(key) DO NOTHING`,
		config.CacheKey.StudentSubmittedKey(userID), time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("acquire submit guard: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteSnapshotStore) ReleaseSubmitGuard(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE key = ?`,
		config.CacheKey.StudentSubmittedKey(userID),
	)
	return err
}
