// Package sqlite records medallion runs in a SQLite ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/rain-forecast-etl/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Ledger persists medallion runs.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and applies
// pending migrations. Path may also be a "file:" DSN.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

func buildDSN(path string) (string, error) {
	params := "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + params, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return fmt.Sprintf("file:%s?%s", path, params), nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Start inserts a run in the running state.
func (l *Ledger) Start(ctx context.Context, run domain.Run) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO medallion_runs (id, source, tag, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Tag, domain.RunRunning, formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Finish records the outcome and row counts of a run.
func (l *Ledger) Finish(ctx context.Context, run domain.Run) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE medallion_runs
		SET status = ?, finished_at = ?, silver_rows = ?, hourly_rows = ?,
		    daily_rows = ?, ml_ready_rows = ?, error = ?
		WHERE id = ?`,
		run.Status, formatTime(run.FinishedAt), run.SilverRows, run.HourlyRows,
		run.DailyRows, run.MLReadyRows, run.Error, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

const selectRuns = `
	SELECT id, source, tag, status, started_at, COALESCE(finished_at, ''),
	       silver_rows, hourly_rows, daily_rows, ml_ready_rows, error
	FROM medallion_runs`

// Get returns a run by id.
func (l *Ledger) Get(ctx context.Context, id string) (domain.Run, error) {
	row := l.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return domain.Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := l.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.Run, error) {
	var (
		run               domain.Run
		started, finished string
	)
	err := s.Scan(&run.ID, &run.Source, &run.Tag, &run.Status, &started, &finished,
		&run.SilverRows, &run.HourlyRows, &run.DailyRows, &run.MLReadyRows, &run.Error)
	if err != nil {
		return domain.Run{}, err
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return domain.Run{}, err
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

// timeLayout is fixed width so stored times order lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse ledger time %q: %w", s, err)
	}
	return t, nil
}
