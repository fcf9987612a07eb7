package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists runs and triggers to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			universe    TEXT NOT NULL,
			job         TEXT NOT NULL,
			action      TEXT,
			duration_ms INTEGER,
			selected    INTEGER,
			processed   INTEGER,
			failed      INTEGER,
			triggered   INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS alert_triggers (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			universe  TEXT NOT NULL,
			alert_id  TEXT NOT NULL,
			isin      TEXT,
			author_id TEXT,
			direction TEXT,
			value     REAL,
			high      REAL,
			low       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_triggers_isin ON alert_triggers(isin, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO runs
		(timestamp, universe, job, action, duration_ms, selected, processed, failed, triggered, error)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.Universe, run.Job, run.Action,
		run.Duration.Milliseconds(), run.Selected, run.Processed, run.Failed, run.Triggered, run.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordTrigger(ctx context.Context, evt *TriggerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := evt.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO alert_triggers
		(timestamp, universe, alert_id, isin, author_id, direction, value, high, low)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		at.Unix(), evt.Universe, evt.AlertID, evt.ISIN, evt.AuthorID,
		evt.Direction, evt.Value, evt.High, evt.Low,
	)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (r *SQLiteRecorder) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT timestamp, universe, job, action, duration_ms,
		selected, processed, failed, triggered, error
		FROM runs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			ts, durMs int64
			run       RunRecord
			action    sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&ts, &run.Universe, &run.Job, &action, &durMs,
			&run.Selected, &run.Processed, &run.Failed, &run.Triggered, &errText); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(ts, 0)
		run.Duration = time.Duration(durMs) * time.Millisecond
		run.Action = action.String
		run.Error = errText.String
		out = append(out, run)
	}
	return out, rows.Err()
}

// TriggerCount returns how many triggers were recorded for isin.
func (r *SQLiteRecorder) TriggerCount(ctx context.Context, isin string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alert_triggers WHERE isin = ?`, isin).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
