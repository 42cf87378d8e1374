package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"regpay/internal/registration"
)

// SQLite persists snapshots in a local database file. Entries are stored as
// JSON under their namespaced key, the same layout the browser build kept in
// localStorage, so the durable store stays a plain key-value table.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS registration_snapshots (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// OpenSQLite opens (creating if needed) the snapshot database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	s, err := NewSQLite(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an existing database handle and ensures the schema.
func NewSQLite(db *sql.DB, logger *slog.Logger) (*SQLite, error) {
	if _, err := db.Exec(createSnapshotsTable); err != nil {
		return nil, fmt.Errorf("ensure snapshot schema: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Put upserts the snapshot under its reference key.
func (s *SQLite) Put(ctx context.Context, snapshot *registration.Snapshot) error {
	if snapshot == nil || snapshot.Reference == "" {
		return fmt.Errorf("snapshot must carry a reference")
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO registration_snapshots (key, payload) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload`,
		Key(snapshot.Reference), string(payload),
	)
	if err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Get retrieves the snapshot for a reference. Unparseable payloads read as
// absent.
func (s *SQLite) Get(ctx context.Context, reference string) (*registration.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM registration_snapshots WHERE key = ?`,
		Key(reference),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %q: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap registration.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		// Tolerate corruption: the fallback path treats this as no cache entry.
		s.logger.Warn("discarding corrupted snapshot entry",
			"reference", reference,
			"error", err,
		)
		return nil, fmt.Errorf("snapshot for %q: %w", reference, ErrNotFound)
	}
	return &snap, nil
}
