package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const createDraftsTableSQL = `
	CREATE TABLE IF NOT EXISTS drafts (
		draft_key VARCHAR(255) NOT NULL PRIMARY KEY,
		payload LONGTEXT NOT NULL,
		saved_at DATETIME(6) NOT NULL,
		INDEX idx_drafts_saved_at (saved_at)
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci
`

// MySQLStore keeps drafts in a MySQL table
type MySQLStore struct {
	db  *sql.DB
	now Clock
	log zerolog.Logger
}

// OpenMySQL connects to dsn and makes sure the drafts table exists
func OpenMySQL(ctx context.Context, dsn string, now Clock) (*MySQLStore, error) {
	normalized, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	s, err := NewMySQLStore(ctx, db, now)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewMySQLStore wraps an open handle. The handle must use parseTime=true.
func NewMySQLStore(ctx context.Context, db *sql.DB, now Clock) (*MySQLStore, error) {
	if now == nil {
		now = time.Now
	}
	if _, err := db.ExecContext(ctx, createDraftsTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create drafts table: %w", err)
	}
	return &MySQLStore{
		db:  db,
		now: now,
		log: log.With().Str("module", "persistence").Str("backend", "mysql").Logger(),
	}, nil
}

// normalizeDSN forces the driver options the store relies on
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Close releases the connection pool
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Save(ctx context.Context, d Draft) error {
	d = stamp(d, s.now)
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts (draft_key, payload, saved_at) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE payload = VALUES(payload), saved_at = VALUES(saved_at)`,
		d.Key, string(payload), d.SavedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", d.Key, err)
	}
	s.log.Debug().Str("key", d.Key).Msg("draft written")
	return nil
}

func (s *MySQLStore) Load(ctx context.Context, key string) (Draft, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM drafts WHERE draft_key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("failed to load draft %s: %w", key, err)
	}
	var d Draft
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return Draft{}, fmt.Errorf("failed to parse draft %s: %w", key, err)
	}
	return d, nil
}

func (s *MySQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE draft_key = ?", key); err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", key, err)
	}
	return nil
}

func (s *MySQLStore) ListAll(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT draft_key, payload FROM drafts ORDER BY draft_key")
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		var d Draft
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("skipping unreadable draft")
			continue
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *MySQLStore) PurgeOlderThan(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.now().Add(-maxAge).UTC()
	res, err := s.db.ExecContext(ctx, "DELETE FROM drafts WHERE saved_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged drafts: %w", err)
	}
	return int(n), nil
}
