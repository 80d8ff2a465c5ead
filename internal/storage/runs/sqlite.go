package runs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/performance"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	status      TEXT NOT NULL,
	days        INTEGER NOT NULL,
	final_value REAL NOT NULL,
	output      TEXT NOT NULL,
	error       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at);
CREATE TABLE IF NOT EXISTS run_metrics (
	run_id   TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	key      TEXT NOT NULL,
	name     TEXT NOT NULL,
	value    REAL,
	unit     TEXT NOT NULL,
	reason   TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// SQLiteStore keeps the run registry in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and migrates it.
// Use ":memory:" for a throwaway registry.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("migrating run registry: %w", err))
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save upserts the run and replaces its metrics.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, name, started_at, finished_at, status, days, final_value, output, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			status = excluded.status,
			days = excluded.days,
			final_value = excluded.final_value,
			output = excluded.output,
			error = excluded.error`,
		rec.ID, rec.Name, toUnix(rec.StartedAt), toUnix(rec.FinishedAt), string(rec.Status),
		rec.Days, rec.FinalValue, rec.Output, rec.Error,
	)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving run %s: %w", rec.ID, err))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_metrics WHERE run_id = ?`, rec.ID); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	for i, m := range rec.Metrics {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO run_metrics (run_id, position, key, name, value, unit, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, m.Key, m.Name, nullable(m.Value), string(m.Unit), string(m.Reason),
		)
		if err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("saving metric %s: %w", m.Key, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// Get retrieves a run and its metrics.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, started_at, finished_at, status, days, final_value, output, error
		FROM runs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	metrics, err := s.metrics(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Metrics = metrics
	return rec, nil
}

// List returns matching runs, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	query := `
		SELECT id, name, started_at, finished_at, status, days, final_value, output, error
		FROM runs WHERE (? = '' OR status = ?) AND (? = '' OR name = ?)
		ORDER BY started_at DESC`
	args := []any{string(filter.Status), string(filter.Status), filter.Name, filter.Name}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	result := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	rows.Close()

	for i := range result {
		metrics, err := s.metrics(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Metrics = metrics
	}
	return result, nil
}

func (s *SQLiteStore) metrics(ctx context.Context, id string) ([]performance.Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, name, value, unit, reason
		FROM run_metrics WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	var metrics []performance.Metric
	for rows.Next() {
		var (
			m            performance.Metric
			value        sql.NullFloat64
			unit, reason string
		)
		if err := rows.Scan(&m.Key, &m.Name, &value, &unit, &reason); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		m.Value = math.NaN()
		if value.Valid {
			m.Value = value.Float64
		}
		m.Unit = performance.Unit(unit)
		m.Reason = performance.Reason(reason)
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return metrics, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec               Record
		started, finished int64
		status            string
	)
	err := row.Scan(&rec.ID, &rec.Name, &started, &finished, &status,
		&rec.Days, &rec.FinalValue, &rec.Output, &rec.Error)
	if err != nil {
		return nil, err
	}
	rec.StartedAt = fromUnix(started)
	rec.FinishedAt = fromUnix(finished)
	rec.Status = Status(status)
	return &rec, nil
}

// Timestamps are stored as UTC nanoseconds; 0 is the zero time.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// nullable stores undefined metric values as NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
