package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ratewatch/internal/models"
)

// SQLiteStore persists run history in a SQLite database. It honours the same
// append-only contract as the JSON store and is meant for long-lived
// histories where rewriting one growing JSON array gets slow.
type SQLiteStore struct {
	mu      sync.RWMutex
	db      *sql.DB
	history []models.RunEntry
}

// NewSQLiteStore opens (creating if needed) the database at path and loads
// the existing history.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		timestamp TEXT NOT NULL,
		total INTEGER NOT NULL,
		succeeded INTEGER NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS checks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(run_id),
		model TEXT NOT NULL,
		category TEXT NOT NULL,
		http_status INTEGER,
		latency_ms REAL,
		message TEXT
	);
	`)
	if err != nil {
		return fmt.Errorf("create checks table: %w", err)
	}
	return nil
}

// Append persists one run entry and its checks in a single transaction.
func (s *SQLiteStore) Append(entry models.RunEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO runs(run_id, timestamp, total, succeeded) VALUES(?, ?, ?, ?)`,
		entry.ID, entry.Timestamp.UTC().Format(time.RFC3339Nano), entry.Total, entry.Succeeded,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for _, check := range entry.Checks {
		_, err = tx.Exec(
			`INSERT INTO checks(run_id, model, category, http_status, latency_ms, message) VALUES(?, ?, ?, ?, ?, ?)`,
			entry.ID, check.Model, string(check.Category),
			nullableInt(check.HTTPStatus), nullableFloat(check.LatencyMS), nullableString(check.Message),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert check: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	s.history = append(s.history, entry)
	return nil
}

// Latest returns the most recent run entry if one exists.
func (s *SQLiteStore) Latest() (models.RunEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return models.RunEntry{}, false
	}
	return s.history[len(s.history)-1], true
}

// History returns a copy of the entire history, oldest first.
func (s *SQLiteStore) History() []models.RunEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := make([]models.RunEntry, len(s.history))
	copy(copied, s.history)
	return copied
}

// HistoryN returns a copy of the last limit entries, oldest first.
func (s *SQLiteStore) HistoryN(limit int) []models.RunEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	copied := make([]models.RunEntry, limit)
	copy(copied, s.history[len(s.history)-limit:])
	return copied
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) load() error {
	rows, err := s.db.Query(`SELECT run_id, timestamp, total, succeeded FROM runs ORDER BY id`)
	if err != nil {
		return fmt.Errorf("load runs: %w", err)
	}
	defer rows.Close()

	var entries []models.RunEntry
	for rows.Next() {
		var entry models.RunEntry
		var ts string
		if err := rows.Scan(&entry.ID, &ts, &entry.Total, &entry.Succeeded); err != nil {
			return fmt.Errorf("scan run: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return fmt.Errorf("%w: run %s timestamp %q", ErrCorrupt, entry.ID, ts)
		}
		entry.Timestamp = parsed
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load runs: %w", err)
	}

	for i := range entries {
		checks, err := s.loadChecks(entries[i].ID)
		if err != nil {
			return err
		}
		entries[i].Checks = checks
	}

	s.history = entries
	return nil
}

func (s *SQLiteStore) loadChecks(runID string) ([]models.CheckResult, error) {
	rows, err := s.db.Query(
		`SELECT model, category, http_status, latency_ms, message FROM checks WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load checks: %w", err)
	}
	defer rows.Close()

	var checks []models.CheckResult
	for rows.Next() {
		var check models.CheckResult
		var category string
		var status sql.NullInt64
		var latency sql.NullFloat64
		var message sql.NullString
		if err := rows.Scan(&check.Model, &category, &status, &latency, &message); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		check.Category = models.Category(category)
		if status.Valid {
			v := int(status.Int64)
			check.HTTPStatus = &v
		}
		if latency.Valid {
			v := latency.Float64
			check.LatencyMS = &v
		}
		if message.Valid {
			v := message.String
			check.Message = &v
		}
		checks = append(checks, check)
	}
	return checks, rows.Err()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
