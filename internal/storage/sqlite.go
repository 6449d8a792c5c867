// Package storage keeps the history of probe runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/hazz-dev/sitecheck/internal/result"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT    PRIMARY KEY,
    source      TEXT    NOT NULL,
    targets     INTEGER NOT NULL,
    timeout_ms  INTEGER NOT NULL,
    attempts    INTEGER NOT NULL,
    batch_size  INTEGER NOT NULL,
    started_at  TEXT    NOT NULL,
    finished_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS results (
    run_id   TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    target   TEXT    NOT NULL,
    result   TEXT    NOT NULL,
    PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_results_run_result ON results(run_id, result);
`

// timeLayout is fixed width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Run is a stored probe run.
type Run struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Targets    int           `json:"targets"`
	Timeout    time.Duration `json:"-"`
	Attempts   int           `json:"attempts"`
	BatchSize  int           `json:"batch_size"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertRun stores run and every entry of t in one transaction. An empty
// run.ID is replaced by a new UUID; the stored run is returned.
func (d *DB) InsertRun(ctx context.Context, run Run, t *result.Table) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, targets, timeout_ms, attempts, batch_size, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Source,
		run.Targets,
		run.Timeout.Milliseconds(),
		run.Attempts,
		run.BatchSize,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return Run{}, fmt.Errorf("inserting run %q: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results (run_id, position, target, result) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("preparing result insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range t.Entries() {
		if _, err := stmt.ExecContext(ctx, run.ID, i, e.Target, e.Result.String()); err != nil {
			return Run{}, fmt.Errorf("inserting result for %q: %w", e.Target, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("committing run %q: %w", run.ID, err)
	}
	return run, nil
}

const runColumns = `id, source, targets, timeout_ms, attempts, batch_size, started_at, finished_at`

// GetRun returns the run with the given id, or ErrNotFound.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %q: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the most recently started run, or nil if none.
func (d *DB) LatestRun(ctx context.Context) (*Run, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs newest first, paginated, plus the total count.
func (d *DB) ListRuns(ctx context.Context, limit, offset int) ([]Run, int, error) {
	var total int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting runs: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, total, nil
}

// RunTable rebuilds the result table of a run in its original order.
func (d *DB) RunTable(ctx context.Context, id string) (*result.Table, error) {
	if _, err := d.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT target, result FROM results WHERE run_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying results of run %q: %w", id, err)
	}
	defer rows.Close()

	t := result.NewTable()
	for rows.Next() {
		var target, rendered string
		if err := rows.Scan(&target, &rendered); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		r, ok := result.Parse(rendered)
		if !ok {
			return nil, fmt.Errorf("run %q: unknown result %q for %q", id, rendered, target)
		}
		t.Set(target, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating result rows: %w", err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var timeoutMs int64
	var startedAt, finishedAt string
	err := row.Scan(&r.ID, &r.Source, &r.Targets, &timeoutMs, &r.Attempts, &r.BatchSize, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.Timeout = time.Duration(timeoutMs) * time.Millisecond
	if r.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	return t, nil
}
