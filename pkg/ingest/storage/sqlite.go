package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// SQLiteStore keeps runs in a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

// OpenSQLite opens or creates the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required: %w", pferrors.ErrValidation)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.With(logging.F("component", "run_store"), logging.F("driver", DriverSQLite)),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations, err := LoadMigrations(DriverSQLite)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = ?", m.Version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		s.logger.Debug("Migration applied", logging.F("version", m.Version))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// SaveRun stores run and its records in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error {
	byMethod, err := encodeByMethod(run.Stats.ByMethod)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = formatTime(run.FinishedAt)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, listing_path, directory, started_at, finished_at,
            total, with_recording, without_recording, by_method
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ListingPath, run.Directory, formatTime(run.StartedAt), finished,
		run.Stats.Total, run.Stats.WithRecording, run.Stats.WithoutRecording, byMethod,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("run %s already stored: %w", run.ID, pferrors.ErrConflict)
		}
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_records (
            run_id, record_id, name, event_date, has_recording,
            file_stem, match_method, match_score, payload
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		row, err := toRecordRow(rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			run.ID, row.recordID, row.name, row.eventDate, row.hasRecording,
			row.fileStem, row.matchMethod, row.matchScore, row.payload,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", row.recordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}

	s.logger.Debug("Run stored", logging.F("run_id", run.ID), logging.F("records", len(records)))
	return nil
}

const runColumns = `id, listing_path, directory, started_at, finished_at,
    total, with_recording, without_recording, by_method`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (matching.Run, error) {
	var (
		run      matching.Run
		started  string
		finished sql.NullString
		byMethod string
	)
	if err := row.Scan(
		&run.ID, &run.ListingPath, &run.Directory, &started, &finished,
		&run.Stats.Total, &run.Stats.WithRecording, &run.Stats.WithoutRecording, &byMethod,
	); err != nil {
		return run, err
	}

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return run, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		if run.FinishedAt, err = parseTime(finished.String); err != nil {
			return run, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	if run.Stats.ByMethod, err = decodeByMethod([]byte(byMethod)); err != nil {
		return run, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]matching.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []matching.Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads a run and its records.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*StoredRun, error) {
	run, err := scanSQLiteRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM run_records WHERE run_id = ? ORDER BY record_id`, id)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()

	out := &StoredRun{Run: run}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord([]byte(payload))
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, rec)
	}
	return out, rows.Err()
}
