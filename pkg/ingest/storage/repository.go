package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// pgUniqueViolation is the SQLSTATE for a duplicate key.
const pgUniqueViolation = "23505"

// Repository stores runs in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a repository over pool.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "run_store"), logging.F("driver", DriverPostgres)),
	}
}

// RegisterMetrics registers pool statistics with reg.
func (r *Repository) RegisterMetrics(reg prometheus.Registerer) error {
	if err := reg.Register(NewPoolStatsCollector(r.pool, "ottermatch")); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

// Migrate applies pending embedded migrations in one transaction.
func (r *Repository) Migrate(ctx context.Context) error {
	migrations, err := LoadMigrations(DriverPostgres)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.Version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", m.Version, err)
		}
		if exists {
			continue
		}
		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Version, err)
		}
		r.logger.Info("Migration applied", logging.F("version", m.Version))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}

// SaveRun stores run and its records in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error {
	byMethod, err := encodeByMethod(run.Stats.ByMethod)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		f := run.FinishedAt
		finished = &f
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ottermatch_runs (
			id, listing_path, directory, started_at, finished_at,
			total, with_recording, without_recording, by_method
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.ListingPath, run.Directory, run.StartedAt, finished,
		run.Stats.Total, run.Stats.WithRecording, run.Stats.WithoutRecording, byMethod,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("run %s already stored: %w", run.ID, pferrors.ErrConflict)
		}
		r.logger.Error("Failed to store run", logging.Err(err), logging.F("run_id", run.ID))
		return fmt.Errorf("insert run: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		row, err := toRecordRow(rec)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO ottermatch_run_records (
				run_id, record_id, name, event_date, has_recording,
				file_stem, match_method, match_score, payload
			) VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9)`,
			run.ID, row.recordID, row.name, row.eventDate, row.hasRecording,
			row.fileStem, row.matchMethod, row.matchScore, row.payload,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}

	r.logger.Debug("Run stored", logging.F("run_id", run.ID), logging.F("records", len(records)))
	return nil
}

const pgRunColumns = `id::text, listing_path, directory, started_at, finished_at,
	total, with_recording, without_recording, by_method`

func scanPostgresRun(row pgx.Row) (matching.Run, error) {
	var (
		run      matching.Run
		finished *time.Time
		byMethod []byte
	)
	if err := row.Scan(
		&run.ID, &run.ListingPath, &run.Directory, &run.StartedAt, &finished,
		&run.Stats.Total, &run.Stats.WithRecording, &run.Stats.WithoutRecording, &byMethod,
	); err != nil {
		return run, err
	}
	run.StartedAt = run.StartedAt.UTC()
	if finished != nil {
		run.FinishedAt = finished.UTC()
	}
	var err error
	run.Stats.ByMethod, err = decodeByMethod(byMethod)
	return run, err
}

// ListRuns returns the most recent runs first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]matching.Run, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+pgRunColumns+` FROM ottermatch_runs ORDER BY started_at DESC, id LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []matching.Run
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads a run and its records.
func (r *Repository) GetRun(ctx context.Context, id string) (*StoredRun, error) {
	run, err := scanPostgresRun(r.pool.QueryRow(ctx,
		`SELECT `+pgRunColumns+` FROM ottermatch_runs WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT payload FROM ottermatch_run_records WHERE run_id::text = $1 ORDER BY record_id`, id)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()

	out := &StoredRun{Run: run}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, rec)
	}
	return out, rows.Err()
}
