package domain

import (
	"testing"
	"time"
)

func TestDeriveVehicleCountMode(t *testing.T) {
	flowSeg := CanonicalSegment{VehicleCountMode: VehicleCountFlowEstimated}
	sampleSeg := CanonicalSegment{VehicleCountMode: VehicleCountNormalized}

	cases := []struct {
		name     string
		segments []CanonicalSegment
		want     VehicleCountMode
	}{
		{"all flow", []CanonicalSegment{flowSeg, flowSeg}, VehicleCountFlowEstimated},
		{"all normalized", []CanonicalSegment{sampleSeg, sampleSeg}, VehicleCountNormalized},
		{"mixed picks least certain", []CanonicalSegment{sampleSeg, flowSeg, sampleSeg}, VehicleCountFlowEstimated},
		{"empty", nil, VehicleCountNormalized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveVehicleCountMode(tc.segments); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBatchResultDegraded(t *testing.T) {
	fresh := BatchResult{}
	if fresh.Degraded() {
		t.Error("batch without errors reported degraded")
	}

	stale := BatchResult{Errors: []string{"Using cached traffic due to live fetch failure"}}
	if !stale.Degraded() {
		t.Error("batch with error annotation not reported degraded")
	}
}

func TestSummarizeRun(t *testing.T) {
	fetchedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	batch := &BatchResult{
		SourceID:         "tomtom_flow_v4",
		FetchedAt:        fetchedAt,
		VehicleCountMode: VehicleCountFlowEstimated,
		Segments: []CanonicalSegment{
			{SegmentID: "la_guardia", LengthKm: 2.5, VehicleCount: 1500, Raw: Provenance{Confidence: 0.8}},
			{SegmentID: "ha_shalom", LengthKm: 3.0, VehicleCount: 2000, Raw: Provenance{Confidence: 0.6}},
		},
		Errors: []string{"Using cached traffic due to live fetch failure"},
	}

	recordedAt := fetchedAt.Add(time.Minute)
	rec := SummarizeRun("run-1", recordedAt, ModeFlow, batch)

	if rec.RunID != "run-1" || rec.RecordedAt != recordedAt || rec.FetchedAt != fetchedAt {
		t.Errorf("identity fields = %+v", rec)
	}
	if rec.SegmentCount != 2 {
		t.Errorf("segment_count = %d, want 2", rec.SegmentCount)
	}
	if rec.TotalLengthKm != 5.5 {
		t.Errorf("total_length_km = %g, want 5.5", rec.TotalLengthKm)
	}
	if rec.TotalVehicleCount != 3500 {
		t.Errorf("total_vehicle_count = %d, want 3500", rec.TotalVehicleCount)
	}
	if diff := rec.MeanConfidence - 0.7; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("mean_confidence = %g, want 0.7", rec.MeanConfidence)
	}
	if !rec.Degraded || rec.ErrorNote == "" {
		t.Errorf("degradation not carried: %+v", rec)
	}
}
