package flow

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"traffic-probe-service/internal/domain"
	"traffic-probe-service/internal/geo"
	"traffic-probe-service/internal/ratelimit"
)

// ServiceName keys rate-limiter and quota state for the upstream flow API.
const ServiceName = "tomtom"

const (
	// TomTom Flow API v4 (absolute speeds, zoom 10).
	defaultBaseURL = "https://api.tomtom.com/traffic/services/4/flowSegmentData/absolute/10/json"

	sourceIDLive   = "tomtom_flow_v4"
	sourceIDSample = "tomtom_flow_v4:sample"

	quotaAlertPercent = 90.0
)

// Config carries the validation and estimation knobs. All of them are
// deployment inputs, not constants of the pipeline. A zero value selects the
// field's default: an explicit 0 is not representable for the numeric knobs,
// so "accept every confidence" or "no flow cap" cannot be configured.
type Config struct {
	// APIKey is the upstream credential. Empty enables sample mode only if
	// AllowSample is set.
	APIKey      string
	AllowSample bool

	BaseURL string        // defaults to the TomTom flow v4 endpoint
	Unit    string        // defaults to KMPH
	Timeout time.Duration // defaults to 20s

	ConfidenceMin      float64 // minimum accepted confidence, defaults to 0.5
	DensityVehPerKm    float64 // vehicle density proxy, defaults to 25
	FlowCapVPH         int     // vehicle count cap, defaults to 6000
	PolylineHalfWindow int     // polyline window half-width, defaults to 8
	QuotaPerHour       int     // hourly quota for alerting, defaults to 2500
}

// TomTomProvider implements the SegmentProvider port against the TomTom Flow
// Segment Data API.
//
// It coordinates:
//   - One live HTTP call per probe, with key redaction
//   - Fail-closed schema and value-range validation
//   - Windowed polyline geometry via the geo package
//   - Quota accounting on the shared rate limiter
//
// The provider is safe for concurrent use. It never retries: retry policy
// belongs to the collector layer.
type TomTomProvider struct {
	session *http.Client
	limiter *ratelimit.Limiter

	apiKey      string
	allowSample bool
	baseURL     string
	unit        string

	confidenceMin      float64
	densityVehPerKm    float64
	flowCapVPH         int
	polylineHalfWindow int
	quotaPerHour       int

	now func() time.Time
}

func NewTomTomProvider(cfg Config, limiter *ratelimit.Limiter) *TomTomProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Unit == "" {
		cfg.Unit = "KMPH"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.ConfidenceMin == 0 {
		cfg.ConfidenceMin = 0.5
	}
	if cfg.DensityVehPerKm == 0 {
		cfg.DensityVehPerKm = 25
	}
	if cfg.FlowCapVPH == 0 {
		cfg.FlowCapVPH = 6000
	}
	if cfg.PolylineHalfWindow == 0 {
		cfg.PolylineHalfWindow = 8
	}
	if cfg.QuotaPerHour == 0 {
		cfg.QuotaPerHour = 2500
	}

	return &TomTomProvider{
		session:            &http.Client{Timeout: cfg.Timeout},
		limiter:            limiter,
		apiKey:             cfg.APIKey,
		allowSample:        cfg.AllowSample,
		baseURL:            cfg.BaseURL,
		unit:               cfg.Unit,
		confidenceMin:      cfg.ConfidenceMin,
		densityVehPerKm:    cfg.DensityVehPerKm,
		flowCapVPH:         cfg.FlowCapVPH,
		polylineHalfWindow: cfg.PolylineHalfWindow,
		quotaPerHour:       cfg.QuotaPerHour,
		now:                time.Now,
	}
}

// HasCredential reports whether live acquisition is possible.
func (p *TomTomProvider) HasCredential() bool { return p.apiKey != "" }

// Keys at or below this length are placeholders or truncated pastes, never
// real credentials.
const minPlausibleKeyLen = 10

// PlausibleAPIKey trims raw and returns it when it can be a real credential,
// or empty otherwise. Implausibly short keys degrade to sample mode at the
// composition root instead of failing on every upstream call.
func PlausibleAPIKey(raw string) string {
	key := strings.TrimSpace(raw)
	if key == "" {
		return ""
	}
	if len(key) <= minPlausibleKeyLen {
		log.Printf("api key rejected: len=%d too short to be a real credential", len(key))
		return ""
	}
	return key
}

// SourceID labels batches by key presence only: with a credential every fetch
// takes the live path regardless of mode, so the batch label must match the
// segments it will contain.
func (p *TomTomProvider) SourceID(mode domain.Mode) string {
	if p.apiKey == "" {
		return sourceIDSample
	}
	return sourceIDLive
}

// FetchSegment turns one probe point into one validated canonical segment, or
// fails closed. Without a credential, sample mode must be explicitly enabled
// (by mode argument or configuration flag) to produce a synthetic segment.
func (p *TomTomProvider) FetchSegment(ctx context.Context, probe domain.ProbePoint, mode domain.Mode) (*domain.CanonicalSegment, error) {
	fetchedAt := p.now().UTC()

	if p.apiKey == "" {
		if !p.allowSample && mode != domain.ModeSample {
			return nil, &domain.ConfigurationError{
				Reason: "API key missing and mode=flow; set TOMTOM_API_KEY or enable sample mode",
			}
		}
		return p.sampleSegment(probe, fetchedAt), nil
	}

	body, headers, redactedURL, err := p.call(ctx, probe.Coordinate())
	if err != nil {
		return nil, err
	}

	var decoded flowResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &domain.SchemaError{
			SegmentID: probe.ID, Field: "flowSegmentData", Reason: "undecodable", Endpoint: redactedURL,
		}
	}
	data := decoded.FlowSegmentData
	if data == nil {
		return nil, &domain.SchemaError{
			SegmentID: probe.ID, Field: "flowSegmentData", Reason: "missing", Endpoint: redactedURL,
		}
	}

	// Presence of every expected field, fail-closed: a missing field is a
	// schema change upstream, never something to default around.
	required := []struct {
		name    string
		present bool
	}{
		{"currentSpeed", data.CurrentSpeed != nil},
		{"currentTravelTime", data.CurrentTravelTime != nil},
		{"freeFlowSpeed", data.FreeFlowSpeed != nil},
		{"freeFlowTravelTime", data.FreeFlowTravelTime != nil},
		{"confidence", data.Confidence != nil},
		{"roadClosure", data.RoadClosure != nil},
		{"coordinates", data.Coordinates != nil},
	}
	for _, f := range required {
		if !f.present {
			return nil, &domain.SchemaError{
				SegmentID: probe.ID, Field: f.name, Reason: "missing", Endpoint: redactedURL,
			}
		}
	}

	speedKmph := *data.CurrentSpeed
	travelTimeS := *data.CurrentTravelTime
	confidence := *data.Confidence
	roadClosure := bool(*data.RoadClosure)

	if confidence < 0 || confidence > 1 {
		return nil, &domain.ConfidenceError{SegmentID: probe.ID, Confidence: confidence, Min: p.confidenceMin}
	}
	if confidence < p.confidenceMin {
		return nil, &domain.ConfidenceError{SegmentID: probe.ID, Confidence: confidence, Min: p.confidenceMin}
	}
	if speedKmph < 0 {
		return nil, &domain.SchemaError{
			SegmentID: probe.ID, Field: "currentSpeed", Reason: "negative", Endpoint: redactedURL,
		}
	}
	if travelTimeS <= 0 {
		return nil, &domain.SchemaError{
			SegmentID: probe.ID, Field: "currentTravelTime", Reason: "non-positive", Endpoint: redactedURL,
		}
	}

	coords, err := parseCoordinates(data.Coordinates)
	if err != nil {
		return nil, &domain.SchemaError{
			SegmentID: probe.ID, Field: "coordinates", Reason: err.Error(), Endpoint: redactedURL,
		}
	}

	// The upstream polyline usually spans far more road than the probe's
	// segment; window it around the nearest point so the length reflects a
	// local neighborhood instead of the whole stretch.
	nearestIdx, err := geo.NearestIndex(coords, probe.Coordinate())
	if err != nil {
		return nil, err
	}
	window, err := geo.WindowedSlice(coords, nearestIdx, p.polylineHalfWindow)
	if err != nil {
		return nil, err
	}
	lengthKm, err := geo.PolylineLengthKm(window)
	if err != nil {
		return nil, err
	}

	// Vehicle count surrogate: speed times density, capped, zero on closure.
	// An explicit proxy, not a measured count; the mode tag says so.
	flowVPH := int(math.Round(speedKmph * p.densityVehPerKm))
	flowVPH = max(0, min(flowVPH, p.flowCapVPH))
	vehicleCount := flowVPH
	if roadClosure {
		vehicleCount = 0
	}

	trackingID := headers.Get("Tracking-ID")

	return &domain.CanonicalSegment{
		SegmentID:           probe.ID,
		LengthKm:            lengthKm,
		ObservedTravelTimeS: travelTimeS,
		VehicleCount:        vehicleCount,
		VehicleCountMode:    domain.VehicleCountFlowEstimated,
		SourceID:            sourceIDLive,
		FetchedAt:           fetchedAt,
		Raw: domain.Provenance{
			Response:            json.RawMessage(body),
			TrackingID:          trackingID,
			Request:             p.requestEcho(probe),
			Confidence:          confidence,
			RoadClosure:         roadClosure,
			PolylinePointsTotal: len(coords),
			PolylinePointsUsed:  len(window),
			PolylineWindowHalf:  p.polylineHalfWindow,
		},
	}, nil
}

// sampleSegment is the synthetic, clearly-labeled stand-in used without a
// credential. Fixed placeholder values; the normalized mode tag tells the
// downstream model these are not measurements.
func (p *TomTomProvider) sampleSegment(probe domain.ProbePoint, fetchedAt time.Time) *domain.CanonicalSegment {
	return &domain.CanonicalSegment{
		SegmentID:           probe.ID,
		LengthKm:            2.0,
		ObservedTravelTimeS: 300.0,
		VehicleCount:        1,
		VehicleCountMode:    domain.VehicleCountNormalized,
		SourceID:            sourceIDSample,
		FetchedAt:           fetchedAt,
		Raw: domain.Provenance{
			Source:  "synthetic-sample",
			Request: p.requestEcho(probe),
		},
	}
}

func (p *TomTomProvider) requestEcho(probe domain.ProbePoint) domain.RequestEcho {
	return domain.RequestEcho{
		Endpoint: p.baseURL,
		Point:    probe.Coordinate().PointParam(),
		Unit:     p.unit,
		OpenLR:   "false",
	}
}
