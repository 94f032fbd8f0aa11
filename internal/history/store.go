// Package history keeps a local record of past runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/steve-taylor/viz/internal/idutil"
)

// Run is one recorded run.
type Run struct {
	ID         string
	Mode       string
	PackageDir string
	StartedAt  time.Time
	Duration   time.Duration
	Passed     bool
	Total      int
	Failures   []Failure
}

// Failure is a failing case of a run.
type Failure struct {
	Suite    string
	Test     string
	Viewport string
	Message  string
}

// Store wraps the SQLite history database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates/migrates) the database at the given path
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys=ON;")
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var ver int
	_ = s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver)

	// v1: runs
	if ver == 0 {
		if err := s.step(ctx, 1, `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  mode        TEXT NOT NULL,
  package_dir TEXT NOT NULL,
  started_at  INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL,
  passed      INTEGER NOT NULL,
  total       INTEGER NOT NULL
);`,
			`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		); err != nil {
			return err
		}
		ver = 1
	}

	// v2: failing cases per run
	if ver == 1 {
		if err := s.step(ctx, 2, `
CREATE TABLE IF NOT EXISTS failures (
  run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  suite    TEXT NOT NULL,
  test     TEXT NOT NULL,
  viewport TEXT NOT NULL,
  message  TEXT NOT NULL
);`,
			`CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);`,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) step(ctx context.Context, version int, stmts ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			break
		}
	}
	if err == nil {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d;", version))
	}
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migrate v%d: %w", version, err)
	}
	return tx.Commit()
}

// Record saves a run and its failures.
func (s *Store) Record(ctx context.Context, r Run) error {
	if !idutil.IsValidID(r.ID, idutil.RunPrefix) {
		return fmt.Errorf("invalid run id %q", r.ID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, mode, package_dir, started_at, duration_ms, passed, total) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.PackageDir, r.StartedAt.UnixMilli(), r.Duration.Milliseconds(), boolInt(r.Passed), r.Total)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, f := range r.Failures {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO failures (run_id, suite, test, viewport, message) VALUES (?, ?, ?, ?, ?)`,
			r.ID, f.Suite, f.Test, f.Viewport, f.Message)
		if err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first, with their failures.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, package_dir, started_at, duration_ms, passed, total FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	var runs []Run
	for rows.Next() {
		var (
			r                  Run
			started, durMillis int64
			passed             int
		)
		if err := rows.Scan(&r.ID, &r.Mode, &r.PackageDir, &started, &durMillis, &passed, &r.Total); err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		r.Duration = time.Duration(durMillis) * time.Millisecond
		r.Passed = passed != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range runs {
		failures, err := s.failures(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Failures = failures
	}
	return runs, nil
}

func (s *Store) failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT suite, test, viewport, message FROM failures WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Suite, &f.Test, &f.Viewport, &f.Message); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the database
func (s *Store) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
