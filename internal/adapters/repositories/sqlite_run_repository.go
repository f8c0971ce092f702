package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"traffic-probe-service/internal/domain"
)

// SQLite-backed implementation of the RunRepository port. Run history is
// append-only; a run_id is written at most once.
type SqliteRunRepository struct{ DB *sql.DB }

func NewSqliteRunRepository(db *sql.DB) *SqliteRunRepository {
	return &SqliteRunRepository{DB: db}
}

// InitSchema creates the run history table.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	q := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		recorded_at INTEGER NOT NULL,
		fetched_at INTEGER NOT NULL,
		mode TEXT NOT NULL,
		source_id TEXT NOT NULL,
		vehicle_count_mode TEXT NOT NULL,
		segment_count INTEGER NOT NULL,
		total_length_km REAL NOT NULL,
		total_vehicle_count INTEGER NOT NULL,
		mean_confidence REAL NOT NULL DEFAULT 0,
		degraded INTEGER NOT NULL,
		error_note TEXT NOT NULL DEFAULT ''
	);
	`
	if _, err := db.Exec(q); err != nil {
		return fmt.Errorf("init schema: create runs table: %w", err)
	}

	idx := `
	CREATE INDEX IF NOT EXISTS idx_runs_recorded_at
	ON runs(recorded_at);
	`
	if _, err := db.Exec(idx); err != nil {
		return fmt.Errorf("init schema: create runs index: %w", err)
	}
	return nil
}

// RecordRun stores one cycle summary. A duplicate run_id is ignored so a
// crashed-and-restarted cycle cannot double-count.
func (s *SqliteRunRepository) RecordRun(ctx context.Context, rec domain.RunRecord) error {
	if s.DB == nil {
		return errors.New("sqlite run repository: DB is nil")
	}
	if rec.RunID == "" {
		return errors.New("record run: run_id must be non-empty")
	}

	q := `
	INSERT OR IGNORE INTO runs (
		run_id,
		recorded_at,
		fetched_at,
		mode,
		source_id,
		vehicle_count_mode,
		segment_count,
		total_length_km,
		total_vehicle_count,
		mean_confidence,
		degraded,
		error_note
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	degraded := 0
	if rec.Degraded {
		degraded = 1
	}
	_, err := s.DB.ExecContext(ctx, q,
		rec.RunID,
		rec.RecordedAt.Unix(),
		rec.FetchedAt.Unix(),
		string(rec.Mode),
		rec.SourceID,
		string(rec.VehicleCountMode),
		rec.SegmentCount,
		rec.TotalLengthKm,
		rec.TotalVehicleCount,
		rec.MeanConfidence,
		degraded,
		rec.ErrorNote,
	)
	if err != nil {
		return fmt.Errorf("record run %q: %w", rec.RunID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns an empty slice.
func (s *SqliteRunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite run repository: DB is nil")
	}
	if limit <= 0 {
		return []domain.RunRecord{}, nil
	}

	q := `
	SELECT
		run_id,
		recorded_at,
		fetched_at,
		mode,
		source_id,
		vehicle_count_mode,
		segment_count,
		total_length_km,
		total_vehicle_count,
		mean_confidence,
		degraded,
		error_note
	FROM runs
	ORDER BY recorded_at DESC, run_id DESC
	LIMIT ?;
	`
	rows, err := s.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: query runs table: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.RunRecord, 0, limit)
	for rows.Next() {
		var rec domain.RunRecord
		var recordedAt, fetchedAt int64
		var mode, countMode string
		var degraded int
		err := rows.Scan(
			&rec.RunID,
			&recordedAt,
			&fetchedAt,
			&mode,
			&rec.SourceID,
			&countMode,
			&rec.SegmentCount,
			&rec.TotalLengthKm,
			&rec.TotalVehicleCount,
			&rec.MeanConfidence,
			&degraded,
			&rec.ErrorNote,
		)
		if err != nil {
			return nil, fmt.Errorf("list runs: scan row: %w", err)
		}
		rec.RecordedAt = time.Unix(recordedAt, 0).UTC()
		rec.FetchedAt = time.Unix(fetchedAt, 0).UTC()
		rec.Mode = domain.Mode(mode)
		rec.VehicleCountMode = domain.VehicleCountMode(countMode)
		rec.Degraded = degraded != 0
		runs = append(runs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: row iteration: %w", err)
	}
	return runs, nil
}
