// Package journal keeps a persistent log of macro expansions in SQLite.
//
// The journal is an audit trail for diagnostics and the stats command. It is never
// consulted to skip or replay an expansion.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/procmacro/internal/expansion"
)

// Entry is a stored expansion record.
type Entry struct {
	ID string
	expansion.Record
}

// MacroStats aggregates the entries of one macro.
type MacroStats struct {
	MacroName   string
	Total       int
	Errors      int
	Cancelled   int
	AvgDuration time.Duration
}

// Summary aggregates the whole journal.
type Summary struct {
	ByStatus map[string]int
	Macros   []MacroStats
}

// Total returns the number of entries.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.ByStatus {
		n += c
	}
	return n
}

// Store is a SQLite-backed expansion journal. It implements expansion.Recorder.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ expansion.Recorder = (*Store)(nil)

// Open opens the journal at path, creating the parent directory if needed.
// Use ":memory:" for an in-memory journal. Call Migrate before use.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		var err error
		if dsn, err = fileDSN(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	logger.Debug("journal opened", slog.String("path", path))
	return &Store{db: db, path: path, logger: logger}, nil
}

// fileDSN builds a file: URI for path. The path is escaped so "?" and "#" in directory
// names stay part of the file name.
func fileDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve journal path: %w", err)
	}
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(abs),
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
	}
	return u.String(), nil
}

// OpenAndMigrate opens the journal and applies pending migrations.
func OpenAndMigrate(path string, logger *slog.Logger) (*Store, error) {
	s, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the path the journal was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordExpansion implements expansion.Recorder.
func (s *Store) RecordExpansion(ctx context.Context, rec expansion.Record) error {
	if s.db == nil {
		return fmt.Errorf("journal not opened")
	}

	id := uuid.NewString()
	s.logger.Debug("recording expansion",
		slog.String("id", id),
		slog.String("macro", rec.MacroName),
		slog.String("status", rec.Status))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expansions (id, macro_name, lib, status, error_kind, message, input_bytes, output_bytes, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.MacroName, rec.Lib, rec.Status, rec.ErrorKind, rec.Message,
		rec.InputBytes, rec.OutputBytes, rec.Duration.Milliseconds(), rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record expansion: %w", err)
	}
	return nil
}

// ListExpansions returns the most recent entries, newest first. A limit of zero or
// less returns all entries.
func (s *Store) ListExpansions(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("journal not opened")
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, macro_name, lib, status, error_kind, message, input_bytes, output_bytes, duration_ms, started_at
		 FROM expansions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expansions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.MacroName, &e.Lib, &e.Status, &e.ErrorKind, &e.Message,
			&e.InputBytes, &e.OutputBytes, &durationMS, &e.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expansion: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summary counts entries by status and aggregates them per macro.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{ByStatus: make(map[string]int)}
	if s.db == nil {
		return sum, fmt.Errorf("journal not opened")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM expansions GROUP BY status`)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize expansions: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			_ = rows.Close()
			return sum, fmt.Errorf("failed to scan status count: %w", err)
		}
		sum.ByStatus[status] = count
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return sum, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT macro_name,
		       COUNT(*),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		       CAST(AVG(duration_ms) AS INTEGER)
		FROM expansions
		GROUP BY macro_name
		ORDER BY COUNT(*) DESC, macro_name`,
		expansion.StatusError, expansion.StatusCancelled)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize macros: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var m MacroStats
		var avgMS int64
		if err := rows.Scan(&m.MacroName, &m.Total, &m.Errors, &m.Cancelled, &avgMS); err != nil {
			return sum, fmt.Errorf("failed to scan macro stats: %w", err)
		}
		m.AvgDuration = time.Duration(avgMS) * time.Millisecond
		sum.Macros = append(sum.Macros, m)
	}
	return sum, rows.Err()
}
