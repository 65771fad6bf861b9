// Package storage records reconciliation runs and their matched records.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pferrors "github.com/otherjamesbrown/ottermatch/pkg/errors"
	"github.com/otherjamesbrown/ottermatch/pkg/logging"
	"github.com/otherjamesbrown/ottermatch/pkg/matching"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultListLimit caps ListRuns when the caller passes no limit.
const DefaultListLimit = 20

const (
	connectAttempts   = 3
	connectRetryDelay = 500 * time.Millisecond
)

// Store persists runs.
type Store interface {
	SaveRun(ctx context.Context, run *matching.Run, records []matching.MatchedRecord) error
	ListRuns(ctx context.Context, limit int) ([]matching.Run, error)
	GetRun(ctx context.Context, id string) (*StoredRun, error)
	Close() error
}

// StoredRun is a run with its records in output order.
type StoredRun struct {
	Run     matching.Run             `json:"run" yaml:"run"`
	Records []matching.MatchedRecord `json:"records" yaml:"records"`
}

// Open opens the store for driver. For sqlite, dsn is a file path; for
// postgres it is a connection string.
func Open(ctx context.Context, driver, dsn string, logger logging.Logger) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, dsn, logger)
	case DriverPostgres:
		cfg := DefaultPoolConfig(dsn)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", pferrors.ErrValidation, err)
		}
		pool, err := ConnectWithRetry(ctx, cfg, connectAttempts, connectRetryDelay)
		if err != nil {
			return nil, err
		}
		repo := NewRepository(pool, logger)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q: %w", driver, pferrors.ErrValidation)
	}
}

func notFound(id string) error {
	return fmt.Errorf("run %s: %w", id, pferrors.ErrNotFound)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// recordRow is the flattened form of a record shared by both drivers.
type recordRow struct {
	recordID     int
	name         string
	eventDate    *string
	hasRecording bool
	fileStem     *string
	matchMethod  *string
	matchScore   float64
	payload      string
}

func toRecordRow(rec matching.MatchedRecord) (recordRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return recordRow{}, fmt.Errorf("marshal record %d: %w", rec.ID, err)
	}
	row := recordRow{
		recordID:     rec.ID,
		name:         rec.Name,
		hasRecording: rec.HasRecording,
		matchScore:   rec.MatchScore,
		payload:      string(payload),
	}
	if rec.EventDate != "" {
		d := rec.EventDate
		row.eventDate = &d
	}
	if rec.File != nil {
		stem := rec.File.Stem
		row.fileStem = &stem
	}
	if rec.MatchMethod != matching.MethodNone {
		m := string(rec.MatchMethod)
		row.matchMethod = &m
	}
	return row, nil
}

func decodeRecord(payload []byte) (matching.MatchedRecord, error) {
	var rec matching.MatchedRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

func encodeByMethod(m map[matching.Method]int) (string, error) {
	if m == nil {
		m = map[matching.Method]int{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal method counts: %w", err)
	}
	return string(data), nil
}

func decodeByMethod(data []byte) (map[matching.Method]int, error) {
	m := make(map[matching.Method]int)
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode method counts: %w", err)
	}
	return m, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
