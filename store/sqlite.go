// Package store persists simulation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/pthm-cable/tritium/engine"
	"github.com/pthm-cable/tritium/telemetry"
)

// ErrNotFound is returned when a run or box does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord describes a stored run.
type RunRecord struct {
	ID               int64
	Label            string
	TBR              float64
	StartupInventory float64
	Duration         float64
	Steps            int
	Stepper          string
	CreatedAt        time.Time
}

// Store is a SQLite-backed run store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a completed run: its metadata, per-box summary, and every
// trajectory sample. Duration, Steps and Stepper are taken from sys; rec.ID
// and rec.CreatedAt are ignored. Returns the new run ID.
func (s *Store) SaveRun(ctx context.Context, rec RunRecord, sys *engine.System) (int64, error) {
	times := sys.Times()
	if sys.State() != engine.StateRun || len(times) == 0 {
		return 0, fmt.Errorf("cannot save run %q: system has not been run", rec.Label)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (label, tbr, startup_inventory, duration, steps, stepper, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Label, rec.TBR, rec.StartupInventory,
		times[len(times)-1], sys.Steps(), sys.Stepper().String(),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	boxStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO boxes (run_id, box_index, name, initial, final, min, min_t, max, mean, exhausted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare box insert: %w", err)
	}
	defer boxStmt.Close()

	sampleStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO samples (run_id, box_index, step, t, inventory) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer sampleStmt.Close()

	info := telemetry.RunInfo{Label: rec.Label, TBR: rec.TBR, StartupInventory: rec.StartupInventory}
	boxes := sys.Boxes()
	for i, st := range telemetry.Summarize(info, sys) {
		exhaustedAt := sql.NullFloat64{Float64: st.ExhaustedAt, Valid: st.Exhausted}
		if _, err := boxStmt.ExecContext(ctx, runID, i, st.Box,
			nanToNull(st.Initial), nanToNull(st.Final), nanToNull(st.Min), st.MinTime,
			nanToNull(st.Max), nanToNull(st.Mean), exhaustedAt); err != nil {
			return 0, fmt.Errorf("failed to insert box %s: %w", st.Box, err)
		}

		for k, v := range boxes[i].Inventories() {
			if _, err := sampleStmt.ExecContext(ctx, runID, i, k, times[k], nanToNull(v)); err != nil {
				return 0, fmt.Errorf("failed to insert sample %d of box %s: %w", k, st.Box, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns all stored runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, tbr, startup_inventory, duration, steps, stepper, created_at
		FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r       RunRecord
			created string
		)
		if err := rows.Scan(&r.ID, &r.Label, &r.TBR, &r.StartupInventory,
			&r.Duration, &r.Steps, &r.Stepper, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at of run %d: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// BoxSummaries returns the stored per-box statistics of a run in network order.
// A stored run without boxes yields an empty slice.
func (s *Store) BoxSummaries(ctx context.Context, runID int64) ([]telemetry.BoxStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.label, r.tbr, r.startup_inventory,
		       b.name, b.initial, b.final, b.min, b.min_t, b.max, b.mean, b.exhausted_at
		FROM boxes b JOIN runs r ON r.id = b.run_id
		WHERE b.run_id = ?
		ORDER BY b.box_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query boxes: %w", err)
	}
	defer rows.Close()

	stats := []telemetry.BoxStats{}
	for rows.Next() {
		st := telemetry.BoxStats{Run: int(runID)}
		var initial, final, lo, hi, mean, exhaustedAt sql.NullFloat64
		if err := rows.Scan(&st.Label, &st.TBR, &st.StartupInventory,
			&st.Box, &initial, &final, &lo, &st.MinTime, &hi, &mean, &exhaustedAt); err != nil {
			return nil, fmt.Errorf("failed to scan box: %w", err)
		}
		st.Initial = nullToNaN(initial)
		st.Final = nullToNaN(final)
		st.Min = nullToNaN(lo)
		st.Max = nullToNaN(hi)
		st.Mean = nullToNaN(mean)
		st.Exhausted = exhaustedAt.Valid
		st.ExhaustedAt = exhaustedAt.Float64
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		if _, err := s.Run(ctx, runID); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// Run returns the metadata of one stored run.
func (s *Store) Run(ctx context.Context, runID int64) (RunRecord, error) {
	var (
		r       RunRecord
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, label, tbr, startup_inventory, duration, steps, stepper, created_at
		FROM runs WHERE id = ?`, runID).Scan(&r.ID, &r.Label, &r.TBR, &r.StartupInventory,
		&r.Duration, &r.Steps, &r.Stepper, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to query run %d: %w", runID, err)
	}
	r.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse created_at of run %d: %w", runID, err)
	}
	return r, nil
}

// Trajectory returns the recorded time axis and inventories of one box of a run.
// With duplicate box names the first box wins.
func (s *Store) Trajectory(ctx context.Context, runID int64, box string) (times, values []float64, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t, inventory FROM samples
		WHERE run_id = ? AND box_index = (
		    SELECT MIN(box_index) FROM boxes WHERE run_id = ? AND name = ?
		)
		ORDER BY step`, runID, runID, box)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t float64
			v sql.NullFloat64
		)
		if err := rows.Scan(&t, &v); err != nil {
			return nil, nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		times = append(times, t)
		values = append(values, nullToNaN(v))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if len(times) == 0 {
		return nil, nil, fmt.Errorf("run %d box %q: %w", runID, box, ErrNotFound)
	}
	return times, values, nil
}

// nanToNull maps NaN, which SQLite stores as NULL, to an explicit NULL.
func nanToNull(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
