package dto

import "time"

// SegmentResponse is the API view of one canonical segment. Raw upstream
// provenance stays in the cache and is not exposed here.
type SegmentResponse struct {
	SegmentID           string    `json:"segment_id"`
	LengthKm            float64   `json:"length_km"`
	ObservedTravelTimeS float64   `json:"observed_travel_time_s"`
	VehicleCount        int       `json:"vehicle_count"`
	VehicleCountMode    string    `json:"vehicle_count_mode"`
	SourceID            string    `json:"source_id"`
	FetchedAt           time.Time `json:"fetched_at"`
}

type TrafficResponse struct {
	SourceID         string            `json:"source_id"`
	FetchedAt        time.Time         `json:"fetched_at"`
	VehicleCountMode string            `json:"vehicle_count_mode"`
	Degraded         bool              `json:"degraded"`
	Errors           []string          `json:"errors,omitempty"`
	Segments         []SegmentResponse `json:"segments"`
}

type RunResponse struct {
	RunID             string    `json:"run_id"`
	RecordedAt        time.Time `json:"recorded_at"`
	FetchedAt         time.Time `json:"fetched_at"`
	Mode              string    `json:"mode"`
	SourceID          string    `json:"source_id"`
	VehicleCountMode  string    `json:"vehicle_count_mode"`
	SegmentCount      int       `json:"segment_count"`
	TotalLengthKm     float64   `json:"total_length_km"`
	TotalVehicleCount int       `json:"total_vehicle_count"`
	MeanConfidence    float64   `json:"mean_confidence"`
	Degraded          bool      `json:"degraded"`
	ErrorNote         string    `json:"error_note,omitempty"`
}

type ListRunResponse struct {
	Runs []RunResponse `json:"runs"`
}

type QuotaResponse struct {
	Service          string   `json:"service"`
	CallsThisHour    int      `json:"calls_this_hour"`
	QuotaPerHour     int      `json:"quota_per_hour"`
	Remaining        int      `json:"remaining"`
	PercentUsed      float64  `json:"percent_used"`
	LastCallAgeSecs  *float64 `json:"last_call_age_seconds,omitempty"`
	MinIntervalSecs  float64  `json:"min_interval_seconds"`
	CredentialLoaded bool     `json:"credential_loaded"`
}
