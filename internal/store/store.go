// Package store persists detection runs, linkage results and learned
// baselines in SQLite so that a restarted process can resume from the last
// baseline snapshot and earlier results can be inspected.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/incident.report/internal/anomaly"
	"github.com/banshee-data/incident.report/internal/baseline"
	"github.com/banshee-data/incident.report/internal/db"
	"github.com/banshee-data/incident.report/internal/errors"
	"github.com/banshee-data/incident.report/internal/linkage"
	"github.com/banshee-data/incident.report/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the embedded schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type Store struct {
	db    *db.DB
	clock timeutil.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for run timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// Open opens (creating if needed) the results database at path and migrates
// it to the latest schema.
func Open(path string, opts ...Option) (*Store, error) {
	database, err := db.OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := database.MigrateUp(Migrations()); err != nil {
		database.Close()
		return nil, errors.Wrap(err, errors.KindInternal, "migrate results store")
	}
	s := &Store{db: database, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DetectionRun summarises one Detect call.
type DetectionRun struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	EventCount   int       `json:"event_count"`
	AnomalyCount int       `json:"anomaly_count"`
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.KindUnavailable, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.KindInternal, "commit transaction")
	}
	return nil
}

// SaveDetection records a detection run over eventCount events and its
// anomalies, in emit order, and returns the run.
func (s *Store) SaveDetection(ctx context.Context, eventCount int, records []anomaly.AnomalyRecord) (DetectionRun, error) {
	run := DetectionRun{
		ID:           uuid.NewString(),
		CreatedAt:    s.clock.Now().UTC(),
		EventCount:   eventCount,
		AnomalyCount: len(records),
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO detection_runs (id, created_at, event_count, anomaly_count) VALUES (?, ?, ?, ?)`,
			run.ID, formatTime(run.CreatedAt), run.EventCount, run.AnomalyCount); err != nil {
			return errors.Wrap(err, errors.KindInternal, "insert detection run")
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO anomalies (
				id, run_id, seq, category, severity, confidence, deviation,
				latitude, longitude, detected_at, record_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "prepare anomaly insert")
		}
		defer stmt.Close()

		for i, r := range records {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			data, err := json.Marshal(r)
			if err != nil {
				return errors.Wrapf(err, errors.KindInternal, "encode anomaly %s", r.ID)
			}
			var lat, lon any
			if r.Location != nil {
				lat, lon = r.Location.Lat, r.Location.Lon
			}
			if _, err := stmt.ExecContext(ctx, r.ID, run.ID, i, string(r.Category), r.Severity, r.Confidence,
				r.Deviation, lat, lon, formatTime(r.DetectedAt), string(data)); err != nil {
				return errors.Wrapf(err, errors.KindInternal, "insert anomaly %s", r.ID)
			}
		}
		return nil
	})
	if err != nil {
		return DetectionRun{}, err
	}
	return run, nil
}

// ListRuns returns the most recent detection runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]DetectionRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, event_count, anomaly_count FROM detection_runs
		ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "list detection runs")
	}
	defer rows.Close()

	var out []DetectionRun
	for rows.Next() {
		var run DetectionRun
		var created string
		if err := rows.Scan(&run.ID, &created, &run.EventCount, &run.AnomalyCount); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan detection run")
		}
		run.CreatedAt = parseTime(created)
		out = append(out, run)
	}
	return out, rows.Err()
}

// ListAnomalies returns the anomalies of a run in emit order.
func (s *Store) ListAnomalies(ctx context.Context, runID string) ([]anomaly.AnomalyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_json FROM anomalies WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "list anomalies for run %s", runID)
	}
	defer rows.Close()

	out := make([]anomaly.AnomalyRecord, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan anomaly")
		}
		var r anomaly.AnomalyRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "decode anomaly")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByCategory returns the number of stored anomalies per category.
func (s *Store) CountByCategory(ctx context.Context) (map[anomaly.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM anomalies GROUP BY category`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "count anomalies")
	}
	defer rows.Close()

	out := make(map[anomaly.Category]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan anomaly count")
		}
		out[anomaly.Category(category)] = n
	}
	return out, rows.Err()
}

// SaveLinkage stores a linkage result for the given seed ids and returns its
// id.
func (s *Store) SaveLinkage(ctx context.Context, seeds []string, result linkage.LinkageResult) (string, error) {
	seedJSON, err := json.Marshal(seeds)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "encode seed ids")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "encode linkage result")
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO linkage_runs (id, created_at, seed_ids, edge_count, result_json) VALUES (?, ?, ?, ?, ?)`,
		id, formatTime(s.clock.Now()), string(seedJSON), len(result.Linkages), string(resultJSON))
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "insert linkage run")
	}
	return id, nil
}

// LoadLinkage returns a stored linkage result.
func (s *Store) LoadLinkage(ctx context.Context, id string) (linkage.LinkageResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM linkage_runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return linkage.LinkageResult{}, errors.Errorf(errors.KindNotFound, "linkage run %s not found", id)
	}
	if err != nil {
		return linkage.LinkageResult{}, errors.Wrapf(err, errors.KindInternal, "load linkage run %s", id)
	}
	var result linkage.LinkageResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return linkage.LinkageResult{}, errors.Wrap(err, errors.KindInternal, "decode linkage result")
	}
	return result, nil
}

// SaveBaselines upserts every metric in one transaction.
func (s *Store) SaveBaselines(ctx context.Context, metrics []baseline.BaselineMetric) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO baselines (name, mean, std_dev, min_value, max_value, sample_count, last_updated, seeded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET
				mean = excluded.mean,
				std_dev = excluded.std_dev,
				min_value = excluded.min_value,
				max_value = excluded.max_value,
				sample_count = excluded.sample_count,
				last_updated = excluded.last_updated,
				seeded = excluded.seeded`)
		if err != nil {
			return errors.Wrap(err, errors.KindInternal, "prepare baseline upsert")
		}
		defer stmt.Close()
		for _, m := range metrics {
			if m.Name == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, m.Name, m.Mean, m.StdDev, m.Min, m.Max,
				m.SampleCount, formatTime(m.LastUpdated), m.Seeded); err != nil {
				return errors.Wrapf(err, errors.KindInternal, "upsert baseline %s", m.Name)
			}
		}
		return nil
	})
}

// LoadBaselines returns every stored metric, sorted by name, ready for
// baseline.Store.Restore.
func (s *Store) LoadBaselines(ctx context.Context) ([]baseline.BaselineMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, mean, std_dev, min_value, max_value, sample_count, last_updated, seeded
		FROM baselines ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "load baselines")
	}
	defer rows.Close()

	var out []baseline.BaselineMetric
	for rows.Next() {
		var m baseline.BaselineMetric
		var updated string
		if err := rows.Scan(&m.Name, &m.Mean, &m.StdDev, &m.Min, &m.Max, &m.SampleCount, &updated, &m.Seeded); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "scan baseline")
		}
		m.LastUpdated = parseTime(updated)
		out = append(out, m)
	}
	return out, rows.Err()
}
