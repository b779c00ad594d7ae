package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS usage_records (
	id             TEXT PRIMARY KEY,
	ts             INTEGER NOT NULL,
	identity_key   TEXT NOT NULL,
	identity_kind  TEXT NOT NULL,
	endpoint       TEXT NOT NULL,
	cost_weight    REAL NOT NULL,
	allowed        INTEGER NOT NULL,
	limit_type_hit TEXT NOT NULL,
	overage_cost   REAL NOT NULL,
	retry_after_ms INTEGER NOT NULL,
	failed_open    INTEGER NOT NULL,
	country_code   TEXT NOT NULL DEFAULT '',
	metadata       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_usage_records_ts ON usage_records (ts);
CREATE INDEX IF NOT EXISTS idx_usage_records_identity ON usage_records (identity_key, ts);
`

// SQLiteStorage is a durable, append-only Storage backed by a single SQLite
// file in WAL mode.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the ledger database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ledger schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Append implements Storage.
func (s *SQLiteStorage) Append(ctx context.Context, rec *Record) error {
	metadata := "{}"
	if len(rec.Metadata) > 0 {
		encoded, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encoding record metadata: %w", err)
		}
		metadata = string(encoded)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records
			(id, ts, identity_key, identity_kind, endpoint, cost_weight,
			 allowed, limit_type_hit, overage_cost, retry_after_ms,
			 failed_open, country_code, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UnixMilli(),
		rec.IdentityKey,
		rec.IdentityKind,
		rec.Endpoint,
		rec.CostWeight,
		boolToInt(rec.Allowed),
		rec.LimitTypeHit,
		rec.OverageCost,
		rec.RetryAfter.Milliseconds(),
		boolToInt(rec.FailedOpen),
		rec.CountryCode,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("appending usage record: %w", err)
	}
	return nil
}

// List implements Storage.
func (s *SQLiteStorage) List(ctx context.Context, identityKey string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, ts, identity_key, identity_kind, endpoint, cost_weight,
			allowed, limit_type_hit, overage_cost, retry_after_ms,
			failed_open, country_code, metadata
		FROM usage_records`
	args := []any{}
	if identityKey != "" {
		query += ` WHERE identity_key = ?`
		args = append(args, identityKey)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing usage records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count implements Storage.
func (s *SQLiteStorage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting usage records: %w", err)
	}
	return n, nil
}

// Prune implements Storage.
func (s *SQLiteStorage) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM usage_records WHERE ts < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning usage records: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close implements Storage.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		rec                 Record
		ts, retryMS         int64
		allowed, failedOpen int
		metadata            string
	)
	err := rows.Scan(
		&rec.ID, &ts, &rec.IdentityKey, &rec.IdentityKind, &rec.Endpoint,
		&rec.CostWeight, &allowed, &rec.LimitTypeHit, &rec.OverageCost,
		&retryMS, &failedOpen, &rec.CountryCode, &metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning usage record: %w", err)
	}

	rec.Timestamp = time.UnixMilli(ts)
	rec.RetryAfter = time.Duration(retryMS) * time.Millisecond
	rec.Allowed = allowed != 0
	rec.FailedOpen = failedOpen != 0
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
			rec.Metadata = nil
		}
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
