// Package store persists enrichment run history in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one enrichment run, terminal or not yet finished.
type Record struct {
	ID         string    `json:"id"`
	PageID     string    `json:"page_id"`
	Company    string    `json:"company,omitempty"`
	Website    string    `json:"website,omitempty"`
	SummaryLen int       `json:"summary_len"`
	Status     string    `json:"status"` // success|failure
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS enrichments (
	id          TEXT PRIMARY KEY,
	page_id     TEXT NOT NULL,
	company     TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	summary_len INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_enrichments_started ON enrichments(started_at DESC);
`

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is usable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Insert writes a terminal record for a run.
func (s *Store) Insert(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrichments (id, page_id, company, website, summary_len, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PageID, rec.Company, rec.Website, rec.SummaryLen,
		rec.Status, rec.Error, rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert enrichment %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, page_id, company, website, summary_len, status, error, started_at, finished_at
		FROM enrichments ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query enrichments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PageID, &rec.Company, &rec.Website,
			&rec.SummaryLen, &rec.Status, &rec.Error, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan enrichment row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
