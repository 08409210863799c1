// Package state remembers which destination event each source event was
// written to, so a later run can update instead of create.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is an sqlite-backed mapping of (calendar, sync key) to identity.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping state db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate state db: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS synced_events (
			calendar_url TEXT NOT NULL,
			sync_key TEXT NOT NULL,
			identity TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (calendar_url, sync_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_synced_events_identity ON synced_events(identity)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the identity stored for key in calendarURL.
// ok is false when nothing was stored yet.
func (s *Store) Lookup(ctx context.Context, calendarURL, key string) (identity string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT identity FROM synced_events WHERE calendar_url = ? AND sync_key = ?`,
		calendarURL, key,
	).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up sync key: %w", err)
	}
	return identity, true, nil
}

// Remember stores identity for key in calendarURL, replacing any previous entry.
func (s *Store) Remember(ctx context.Context, calendarURL, key, identity, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO synced_events (calendar_url, sync_key, identity, title, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(calendar_url, sync_key) DO UPDATE SET
			identity = excluded.identity,
			title = excluded.title,
			updated_at = excluded.updated_at`,
		calendarURL, key, identity, title, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store sync key: %w", err)
	}
	return nil
}

// Count returns the number of remembered events for calendarURL.
func (s *Store) Count(ctx context.Context, calendarURL string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM synced_events WHERE calendar_url = ?`, calendarURL,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count synced events: %w", err)
	}
	return n, nil
}
