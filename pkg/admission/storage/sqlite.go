package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"clubline-hq/saturn/pkg/admission/window"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS window_snapshots (
	identity_key TEXT PRIMARY KEY,
	states       TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_window_snapshots_updated
	ON window_snapshots (updated_at);
`

// SQLiteBackend is a durable Backend storing snapshots in a single SQLite
// file. WAL mode keeps the periodic persist loop from blocking reads.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (creating if needed) the snapshot database.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	return &SQLiteBackend{db: db}, nil
}

// Save implements Backend.
func (s *SQLiteBackend) Save(ctx context.Context, key string, states []window.State) error {
	payload, err := json.Marshal(states)
	if err != nil {
		return fmt.Errorf("encoding snapshot for %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO window_snapshots (identity_key, states, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(identity_key) DO UPDATE SET
			states = excluded.states,
			updated_at = excluded.updated_at`,
		key, string(payload), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", key, err)
	}
	return nil
}

// LoadAll implements Backend.
func (s *SQLiteBackend) LoadAll(ctx context.Context) (map[string][]window.State, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_key, states FROM window_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("loading snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]window.State)
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}

		var states []window.State
		if err := json.Unmarshal([]byte(payload), &states); err != nil {
			// A corrupt row loses one identity's snapshot, not the lot.
			continue
		}
		out[key] = states
	}
	return out, rows.Err()
}

// Cleanup implements Backend.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM window_snapshots WHERE updated_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleaning up snapshots: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
