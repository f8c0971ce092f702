package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"traffic-probe-service/internal/api/dto"
	"traffic-probe-service/internal/domain"
)

type stubCollector struct {
	batch *domain.BatchResult
	err   error
	mode  domain.Mode
}

func (s *stubCollector) CollectWithFallback(ctx context.Context, mode domain.Mode) (*domain.BatchResult, error) {
	s.mode = mode
	return s.batch, s.err
}

func serveTraffic(t *testing.T, collector *stubCollector, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := &TrafficHandler{Collector: collector, DefaultMode: domain.ModeFlow}
	rec := httptest.NewRecorder()
	h.Traffic(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestTrafficOK(t *testing.T) {
	batch := &domain.BatchResult{
		SourceID:         "tomtom_flow_v4",
		FetchedAt:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		VehicleCountMode: domain.VehicleCountFlowEstimated,
		Segments: []domain.CanonicalSegment{
			{SegmentID: "la_guardia", LengthKm: 2.5, ObservedTravelTimeS: 120, VehicleCount: 1500},
		},
	}
	collector := &stubCollector{batch: batch}

	rec := serveTraffic(t, collector, "/traffic")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if collector.mode != domain.ModeFlow {
		t.Errorf("mode = %q, want default flow", collector.mode)
	}

	var res dto.TrafficResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].SegmentID != "la_guardia" {
		t.Errorf("segments = %+v", res.Segments)
	}
	if res.Degraded {
		t.Error("fresh batch reported degraded")
	}
}

func TestTrafficModeQuery(t *testing.T) {
	collector := &stubCollector{batch: &domain.BatchResult{}}
	serveTraffic(t, collector, "/traffic?mode=sample")
	if collector.mode != domain.ModeSample {
		t.Errorf("mode = %q, want sample", collector.mode)
	}

	rec := serveTraffic(t, collector, "/traffic?mode=bogus")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown mode", rec.Code)
	}
}

func TestTrafficErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", &domain.RateLimitedError{Service: "tomtom", WaitSeconds: 42}, http.StatusTooManyRequests},
		{"missing credential", &domain.ConfigurationError{Reason: "TOMTOM_API_KEY not set"}, http.StatusServiceUnavailable},
		{"upstream failure", &domain.UpstreamError{Service: "tomtom", StatusCode: 500}, http.StatusBadGateway},
		{"schema violation", &domain.SchemaError{SegmentID: "la_guardia", Field: "confidence", Reason: "missing"}, http.StatusBadGateway},
		{"low confidence", &domain.ConfidenceError{SegmentID: "la_guardia", Confidence: 0.2, Min: 0.5}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serveTraffic(t, &stubCollector{err: tc.err}, "/traffic")
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestTrafficRateLimitedSetsRetryAfter(t *testing.T) {
	rec := serveTraffic(t, &stubCollector{err: &domain.RateLimitedError{Service: "tomtom", WaitSeconds: 42.4}}, "/traffic")
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Retry-After = %q, want %q", got, "42")
	}
}

func TestTrafficMethodNotAllowed(t *testing.T) {
	h := &TrafficHandler{Collector: &stubCollector{}, DefaultMode: domain.ModeFlow}
	rec := httptest.NewRecorder()
	h.Traffic(rec, httptest.NewRequest(http.MethodPost, "/traffic", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
