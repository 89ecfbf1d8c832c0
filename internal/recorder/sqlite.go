package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"quantamental/internal/model"
)

// SQLiteRecorder persists run history and features to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL lets dashboards read while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{
		db:     db,
		logger: log.With().Str("component", "recorder").Logger(),
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at     INTEGER NOT NULL,
			finished_at    INTEGER NOT NULL,
			requested      INTEGER,
			succeeded      INTEGER,
			failed_tickers TEXT,
			row_count      INTEGER,
			status         TEXT,
			note           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_runs_started ON fetch_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS features (
			ticker      TEXT NOT NULL,
			date        TEXT NOT NULL,
			name        TEXT NOT NULL,
			value       REAL,
			computed_at INTEGER NOT NULL,
			PRIMARY KEY (ticker, date, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_features_name ON features(name, date)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordFetchRun(run *FetchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetch_runs
		(started_at, finished_at, requested, succeeded, failed_tickers, row_count, status, note)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Requested, run.Succeeded, strings.Join(run.FailedTickers, ","),
		run.Rows, run.Status, run.Note,
	)
	return err
}

// RecordFeatures replaces every stored cell of ft's ticker. Undefined cells
// are stored as NULL.
func (r *SQLiteRecorder) RecordFeatures(ft *model.FeatureTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM features WHERE ticker = ?`, ft.Ticker); err != nil {
		return fmt.Errorf("clear %s: %w", ft.Ticker, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO features (ticker, date, name, value, computed_at) VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, name := range ft.Names() {
		col, _ := ft.Column(name)
		for i, v := range col {
			if _, err := stmt.Exec(ft.Ticker, ft.Dates[i].Format(model.DateLayout), name, v, now); err != nil {
				return fmt.Errorf("insert %s %s: %w", ft.Ticker, name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug().Str("ticker", ft.Ticker).Int("rows", ft.Len()).Int("columns", len(ft.Names())).Msg("features recorded")
	return nil
}

func (r *SQLiteRecorder) LastFetchRun() (*FetchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		started, finished int64
		failed            string
		run               FetchRun
	)
	err := r.db.QueryRow(`SELECT started_at, finished_at, requested, succeeded, failed_tickers, row_count, status, note
		FROM fetch_runs ORDER BY id DESC LIMIT 1`).
		Scan(&started, &finished, &run.Requested, &run.Succeeded, &failed, &run.Rows, &run.Status, &run.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	run.StartedAt = time.Unix(started, 0)
	run.FinishedAt = time.Unix(finished, 0)
	if failed != "" {
		run.FailedTickers = strings.Split(failed, ",")
	}
	return &run, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
