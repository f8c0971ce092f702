package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"traffic-probe-service/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return db
}

func sampleRun(id string, recordedAt time.Time) domain.RunRecord {
	return domain.RunRecord{
		RunID:             id,
		RecordedAt:        recordedAt,
		FetchedAt:         recordedAt,
		Mode:              domain.ModeFlow,
		SourceID:          "tomtom_flow_v4",
		VehicleCountMode:  domain.VehicleCountFlowEstimated,
		SegmentCount:      3,
		TotalLengthKm:     7.5,
		TotalVehicleCount: 4500,
		MeanConfidence:    0.92,
	}
}

func TestRecordAndListRuns(t *testing.T) {
	repo := NewSqliteRunRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		rec := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		if err := repo.RecordRun(ctx, rec); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	runs, err := repo.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Errorf("order = %s, %s; want run-c, run-b", runs[0].RunID, runs[1].RunID)
	}
	if runs[0].RecordedAt != base.Add(2*time.Minute) {
		t.Errorf("recorded_at = %v", runs[0].RecordedAt)
	}
	if runs[0].TotalVehicleCount != 4500 || runs[0].TotalLengthKm != 7.5 {
		t.Errorf("aggregates = %d veh, %g km", runs[0].TotalVehicleCount, runs[0].TotalLengthKm)
	}
	if runs[0].MeanConfidence != 0.92 {
		t.Errorf("mean_confidence = %g, want 0.92", runs[0].MeanConfidence)
	}
}

func TestRecordRunDuplicateIsNoOp(t *testing.T) {
	repo := NewSqliteRunRepository(openTestDB(t))
	ctx := context.Background()

	first := sampleRun("run-a", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	if err := repo.RecordRun(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}

	dupe := first
	dupe.SegmentCount = 99
	if err := repo.RecordRun(ctx, dupe); err != nil {
		t.Fatalf("duplicate record: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].SegmentCount != 3 {
		t.Errorf("segment_count = %d, want the original 3", runs[0].SegmentCount)
	}
}

func TestRecordRunDegradedRoundTrip(t *testing.T) {
	repo := NewSqliteRunRepository(openTestDB(t))
	ctx := context.Background()

	rec := sampleRun("run-deg", time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	rec.Degraded = true
	rec.ErrorNote = "Using cached traffic due to live fetch failure"
	if err := repo.RecordRun(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := repo.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !runs[0].Degraded {
		t.Error("degraded flag lost")
	}
	if runs[0].ErrorNote != rec.ErrorNote {
		t.Errorf("error_note = %q", runs[0].ErrorNote)
	}
}

func TestRecordRunRejectsEmptyID(t *testing.T) {
	repo := NewSqliteRunRepository(openTestDB(t))
	if err := repo.RecordRun(context.Background(), domain.RunRecord{}); err == nil {
		t.Fatal("expected error for empty run_id")
	}
}

func TestListRunsNonPositiveLimit(t *testing.T) {
	repo := NewSqliteRunRepository(openTestDB(t))
	runs, err := repo.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}
