// Package storage persists audit runs in a local SQLite database.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/guregu/null.v3"

	"github.com/vincentbai/browsetrace-audit/internal/audit"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

type Store struct {
	db *sql.DB
}

func NewStore(databasePath string) (*Store, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS audits(
	  id                   TEXT PRIMARY KEY,
	  created_utc          INTEGER NOT NULL,
	  url                  TEXT    NOT NULL,
	  navigation_start     REAL    NOT NULL,
	  first_meaningful_paint REAL  NOT NULL,
	  dom_content_loaded   REAL    NOT NULL,
	  trace_end            REAL    NOT NULL,
	  first_interactive_ms REAL,
	  first_interactive_ts REAL,
	  failure              TEXT    NOT NULL DEFAULT '' CHECK (failure IN ('','trace_busy','trace_too_short'))
	);
	CREATE INDEX IF NOT EXISTS idx_audits_created ON audits(created_utc);
	CREATE INDEX IF NOT EXISTS idx_audits_url     ON audits(url);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ValidateResult(result audit.Result) error {
	if result.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if _, err := uuid.Parse(result.RunID); err != nil {
		return fmt.Errorf("run id must be a UUID: %w", err)
	}
	if result.CreatedAt.IsZero() {
		return fmt.Errorf("created time cannot be zero")
	}
	if result.Timings.TraceEnd <= result.Timings.FirstMeaningfulPaint {
		return fmt.Errorf("trace end must be after first meaningful paint")
	}
	if !result.FirstInteractiveMs.Valid && result.Failure == "" {
		return fmt.Errorf("result needs either a value or a failure kind")
	}
	return nil
}

func (s *Store) InsertResults(results []audit.Result) error {
	transaction, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO audits(
		id, created_utc, url,
		navigation_start, first_meaningful_paint, dom_content_loaded, trace_end,
		first_interactive_ms, first_interactive_ts, failure
	) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, result := range results {
		if err := s.ValidateResult(result); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("invalid result: %w", err)
		}
		if _, err := statement.Exec(
			result.RunID, result.CreatedAt.UnixMilli(), result.URL,
			result.Timings.NavigationStart, result.Timings.FirstMeaningfulPaint,
			result.Timings.DOMContentLoaded, result.Timings.TraceEnd,
			result.FirstInteractiveMs, result.FirstInteractiveTS, result.Failure,
		); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RecentResults returns up to limit audit runs, newest first.
func (s *Store) RecentResults(limit int) ([]audit.Result, error) {
	rows, err := s.db.Query(`SELECT
		id, created_utc, url,
		navigation_start, first_meaningful_paint, dom_content_loaded, trace_end,
		first_interactive_ms, first_interactive_ts, failure
	FROM audits ORDER BY created_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	var results []audit.Result
	for rows.Next() {
		var r audit.Result
		var createdMilli int64
		var fiMs, fiTS sql.NullFloat64
		if err := rows.Scan(
			&r.RunID, &createdMilli, &r.URL,
			&r.Timings.NavigationStart, &r.Timings.FirstMeaningfulPaint,
			&r.Timings.DOMContentLoaded, &r.Timings.TraceEnd,
			&fiMs, &fiTS, &r.Failure,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdMilli).UTC()
		r.FirstInteractiveMs = null.NewFloat(fiMs.Float64, fiMs.Valid)
		r.FirstInteractiveTS = null.NewFloat(fiTS.Float64, fiTS.Valid)
		results = append(results, r)
	}
	return results, rows.Err()
}
