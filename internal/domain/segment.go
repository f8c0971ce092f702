package domain

import (
	"encoding/json"
	"time"
)

// Mode selects how probe segments are acquired.
type Mode string

const (
	// ModeFlow uses the live upstream flow API and requires a credential.
	ModeFlow Mode = "flow"
	// ModeSample produces synthetic, clearly-labeled segments without a credential.
	ModeSample Mode = "sample"
)

// VehicleCountMode tags how a segment's vehicle count was derived.
type VehicleCountMode string

const (
	// Vehicle count derived from live speed and a density proxy.
	VehicleCountFlowEstimated VehicleCountMode = "flow_estimated"
	// Placeholder vehicle count used when no live credential is available.
	VehicleCountNormalized VehicleCountMode = "normalized_per_probe"
)

// RequestEcho records the outbound request for provenance, without the credential.
type RequestEcho struct {
	Endpoint string `json:"endpoint"`
	Point    string `json:"point"`
	Unit     string `json:"unit"`
	OpenLR   string `json:"openLr"`
}

// Provenance is the audit bag embedded in every segment. The upstream
// credential never appears here.
type Provenance struct {
	Source              string          `json:"source,omitempty"`
	Response            json.RawMessage `json:"response,omitempty"`
	TrackingID          string          `json:"tracking_id,omitempty"`
	Request             RequestEcho     `json:"request"`
	Confidence          float64         `json:"confidence,omitempty"`
	RoadClosure         bool            `json:"road_closure,omitempty"`
	PolylinePointsTotal int             `json:"polyline_points_total,omitempty"`
	PolylinePointsUsed  int             `json:"polyline_points_used,omitempty"`
	PolylineWindowHalf  int             `json:"polyline_window_half,omitempty"`
}

// CanonicalSegment is the validated record describing one probe's traffic
// conditions for one acquisition cycle. Segments are never mutated, only
// superseded by the next cycle's segment with the same ID.
type CanonicalSegment struct {
	SegmentID           string           `json:"segment_id"`
	LengthKm            float64          `json:"length_km"`
	ObservedTravelTimeS float64          `json:"observed_travel_time_s"`
	VehicleCount        int              `json:"vehicle_count"`
	VehicleCountMode    VehicleCountMode `json:"vehicle_count_mode"`
	SourceID            string           `json:"source_id"`
	FetchedAt           time.Time        `json:"fetched_at"`
	Raw                 Provenance       `json:"raw"`
}

// BatchResult aggregates all canonical segments of one acquisition cycle.
type BatchResult struct {
	SourceID         string             `json:"source_id"`
	FetchedAt        time.Time          `json:"fetched_at"`
	VehicleCountMode VehicleCountMode   `json:"vehicle_count_mode"`
	Segments         []CanonicalSegment `json:"segments"`
	Errors           []string           `json:"errors,omitempty"`
}

// Degraded reports whether the batch carries a non-fatal error annotation
// (e.g. served from stale cache after a live fetch failure).
func (b *BatchResult) Degraded() bool { return len(b.Errors) > 0 }

// DeriveVehicleCountMode returns the batch-level mode: flow_estimated when any
// segment used live flow data, otherwise normalized_per_probe. When modes are
// mixed the least certain one wins.
func DeriveVehicleCountMode(segments []CanonicalSegment) VehicleCountMode {
	for _, s := range segments {
		if s.VehicleCountMode == VehicleCountFlowEstimated {
			return VehicleCountFlowEstimated
		}
	}
	return VehicleCountNormalized
}
