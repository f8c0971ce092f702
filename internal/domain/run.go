package domain

import "time"

// RunRecord is one row of acquisition history: a per-cycle summary persisted
// for the dashboard and for post-hoc auditing. Full provenance stays in the
// cache; the history keeps only derived aggregates.
type RunRecord struct {
	RunID             string
	RecordedAt        time.Time
	FetchedAt         time.Time
	Mode              Mode
	SourceID          string
	VehicleCountMode  VehicleCountMode
	SegmentCount      int
	TotalLengthKm     float64
	TotalVehicleCount int
	MeanConfidence    float64
	Degraded          bool
	ErrorNote         string
}

// SummarizeRun derives a RunRecord from a batch result.
func SummarizeRun(runID string, recordedAt time.Time, mode Mode, batch *BatchResult) RunRecord {
	rec := RunRecord{
		RunID:            runID,
		RecordedAt:       recordedAt,
		FetchedAt:        batch.FetchedAt,
		Mode:             mode,
		SourceID:         batch.SourceID,
		VehicleCountMode: batch.VehicleCountMode,
		SegmentCount:     len(batch.Segments),
		Degraded:         batch.Degraded(),
	}
	for _, s := range batch.Segments {
		rec.TotalLengthKm += s.LengthKm
		rec.TotalVehicleCount += s.VehicleCount
		rec.MeanConfidence += s.Raw.Confidence
	}
	if len(batch.Segments) > 0 {
		rec.MeanConfidence /= float64(len(batch.Segments))
	}
	if len(batch.Errors) > 0 {
		rec.ErrorNote = batch.Errors[0]
	}
	return rec
}
