package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store persists ingestion runs and the consolidated sales table.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the tracking tables if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, &model.ConfigurationError{Key: "output.driver", Reason: fmt.Sprintf("unsupported driver %q", driver)}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One writer at a time.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenConfigured opens the configured output database. It returns a nil
// store when no DSN is configured. For sqlite the parent directory of the
// database file is created.
func OpenConfigured(ctx context.Context, cfg config.OutputConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	if cfg.Driver == DriverSQLite && !strings.HasPrefix(cfg.DSN, "file:") && cfg.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return Open(ctx, cfg.Driver, cfg.DSN)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	runTable := `
	CREATE TABLE IF NOT EXISTS ingestion_runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		quarantined INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	`
	fileTable := `
	CREATE TABLE IF NOT EXISTS run_files (
		run_id TEXT NOT NULL,
		file TEXT NOT NULL,
		status TEXT NOT NULL,
		destination TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		error_message TEXT NOT NULL,
		validation TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, runTable); err != nil {
		return fmt.Errorf("failed to create ingestion_runs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fileTable); err != nil {
		return fmt.Errorf("failed to create run_files: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ------------------- Runs -------------------

// CreateRun stores a new pending run.
func (s *Store) CreateRun(ctx context.Context, runID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO ingestion_runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`),
		runID, string(model.RunPending), now, now)
	return err
}

// UpdateRunStatus updates run status
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE ingestion_runs SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), now, runID)
	return err
}

// FailRun marks a run failed with its error.
func (s *Store) FailRun(ctx context.Context, runID string, runErr error) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.rebind(`UPDATE ingestion_runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`),
		string(model.RunFailed), runErr.Error(), now, runID)
	return err
}

// CompleteRun stores the file outcomes and totals of a finished run.
func (s *Store) CompleteRun(ctx context.Context, report *model.IngestReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := s.rebind(`INSERT INTO run_files (run_id, file, status, destination, row_count, attempts, error_message, validation, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, f := range report.Files {
		if _, err := tx.ExecContext(ctx, insert, report.RunID, f.File, string(f.Status), f.Destination,
			f.Rows, f.Attempts, f.Error, f.Validation, f.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to save outcome of %s: %w", f.File, err)
		}
	}

	_, err = tx.ExecContext(ctx, s.rebind(`UPDATE ingestion_runs SET status = ?, processed = ?, quarantined = ?, row_count = ?, updated_at = ? WHERE id = ?`),
		string(model.RunCompleted), len(report.Processed()), len(report.Quarantined()), report.Rows, time.Now().UTC(), report.RunID)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListRuns returns all runs, newest first, without file outcomes.
func (s *Store) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, processed, quarantined, row_count, error_message, created_at, updated_at
		FROM ingestion_runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var r model.RunSummary
		var status string
		if err := rows.Scan(&r.ID, &status, &r.Processed, &r.Quarantined, &r.Rows, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run with its file outcomes. It returns sql.ErrNoRows
// for an unknown id.
func (s *Store) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	var r model.RunSummary
	var status string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, status, processed, quarantined, row_count, error_message, created_at, updated_at
		FROM ingestion_runs WHERE id = ?`), runID).
		Scan(&r.ID, &status, &r.Processed, &r.Quarantined, &r.Rows, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT file, status, destination, row_count, attempts, error_message, validation, duration_ms
		FROM run_files WHERE run_id = ? ORDER BY file`), runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var f model.FileOutcome
		var fstatus string
		var durationMS int64
		if err := rows.Scan(&f.File, &fstatus, &f.Destination, &f.Rows, &f.Attempts, &f.Error, &f.Validation, &durationMS); err != nil {
			return nil, err
		}
		f.Status = model.FileStatus(fstatus)
		f.Duration = time.Duration(durationMS) * time.Millisecond
		r.Files = append(r.Files, f)
	}
	return &r, rows.Err()
}
