package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// Run is one recorded province load.
type Run struct {
	ID         string
	Province   string
	Window     types.Window
	StartedAt  time.Time
	FinishedAt time.Time
	Fetched    int
	Added      int
	Total      int
	Error      string
}

// RunLog records province loads in a SQLite database.
type RunLog struct {
	conn *sql.DB
	path string
}

const runSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	province     TEXT NOT NULL,
	window_start TEXT NOT NULL,
	window_end   TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT NOT NULL,
	fetched      INTEGER NOT NULL,
	added        INTEGER NOT NULL,
	total        INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_province ON runs(province, started_at);
`

// OpenRunLog creates or opens the run log at path.
func OpenRunLog(path string) (*RunLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}
	if _, err := conn.Exec(runSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating run log schema: %w", err)
	}

	return &RunLog{conn: conn, path: path}, nil
}

// Record stores a run and returns its ID, generating one when empty.
func (l *RunLog) Record(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO runs (id, province, window_start, window_end, started_at, finished_at, fetched, added, total, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Province,
		formatTime(r.Window.Start), formatTime(r.Window.End),
		formatTime(r.StartedAt), formatTime(r.FinishedAt),
		r.Fetched, r.Added, r.Total, r.Error,
	)
	if err != nil {
		return "", &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("insert run: %w", err)}
	}
	return r.ID, nil
}

// Recent returns up to limit runs for a province, newest first. An empty
// province matches every province.
func (l *RunLog) Recent(ctx context.Context, province string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.conn.QueryContext(ctx,
		`SELECT id, province, window_start, window_end, started_at, finished_at, fetched, added, total, error
		 FROM runs WHERE (? = '' OR province = ?) ORDER BY started_at DESC LIMIT ?`,
		province, province, limit)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("query runs: %w", err)}
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Latest returns the most recent run of every province, ordered by name.
func (l *RunLog) Latest(ctx context.Context) ([]Run, error) {
	rows, err := l.conn.QueryContext(ctx,
		`SELECT r.id, r.province, r.window_start, r.window_end, r.started_at, r.finished_at, r.fetched, r.added, r.total, r.error
		 FROM runs r
		 JOIN (SELECT province, MAX(started_at) AS started_at FROM runs GROUP BY province) m
		   ON r.province = m.province AND r.started_at = m.started_at
		 ORDER BY r.province`)
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("query latest runs: %w", err)}
	}
	defer rows.Close()
	return scanRuns(rows)
}

// Close closes the database connection.
func (l *RunLog) Close() error {
	return l.conn.Close()
}

// Path returns the database file path.
func (l *RunLog) Path() string {
	return l.path
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			r                                   Run
			wStart, wEnd, startedAt, finishedAt string
		)
		if err := rows.Scan(&r.ID, &r.Province, &wStart, &wEnd, &startedAt, &finishedAt,
			&r.Fetched, &r.Added, &r.Total, &r.Error); err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("scan run: %w", err)}
		}
		r.Window.Start = parseTime(wStart)
		r.Window.End = parseTime(wEnd)
		r.StartedAt = parseTime(startedAt)
		r.FinishedAt = parseTime(finishedAt)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: err}
	}
	return runs, nil
}

// runTimeLayout is fixed width so stored timestamps sort as text.
const runTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(runTimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(runTimeLayout, s)
	return t
}
