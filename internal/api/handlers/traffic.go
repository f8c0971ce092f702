package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"traffic-probe-service/internal/api/dto"
	"traffic-probe-service/internal/domain"
)

// BatchCollector is the slice of the collector the traffic endpoint needs.
type BatchCollector interface {
	CollectWithFallback(ctx context.Context, mode domain.Mode) (*domain.BatchResult, error)
}

type TrafficHandler struct {
	Collector   BatchCollector
	DefaultMode domain.Mode
}

// Traffic serves the current batch, refreshing through the collector when the
// cache is cold. Failures map onto HTTP statuses by error class.
func (h *TrafficHandler) Traffic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	mode, err := parseMode(r.URL.Query().Get("mode"), h.DefaultMode)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	batch, err := h.Collector.CollectWithFallback(r.Context(), mode)
	if err != nil {
		writeCollectError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, toTrafficResponse(batch))
}

func parseMode(raw string, fallback domain.Mode) (domain.Mode, error) {
	switch strings.TrimSpace(raw) {
	case "":
		return fallback, nil
	case string(domain.ModeFlow):
		return domain.ModeFlow, nil
	case string(domain.ModeSample):
		return domain.ModeSample, nil
	default:
		return "", fmt.Errorf("mode must be %q or %q", domain.ModeFlow, domain.ModeSample)
	}
}

// writeCollectError maps the error taxonomy onto HTTP statuses. Messages
// surface the typed error text, which never carries the credential.
func writeCollectError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *domain.RateLimitedError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rateErr.WaitSeconds))
		writeError(w, r, http.StatusTooManyRequests, rateErr.Error())
		return
	}

	var cfgErr *domain.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeError(w, r, http.StatusServiceUnavailable, cfgErr.Error())
		return
	}

	var upErr *domain.UpstreamError
	var schemaErr *domain.SchemaError
	var confErr *domain.ConfidenceError
	var geoErr *domain.GeometryError
	if errors.As(err, &upErr) || errors.As(err, &schemaErr) ||
		errors.As(err, &confErr) || errors.As(err, &geoErr) {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	log.Printf("collect failed: %v", err)
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

func toTrafficResponse(batch *domain.BatchResult) dto.TrafficResponse {
	res := dto.TrafficResponse{
		SourceID:         batch.SourceID,
		FetchedAt:        batch.FetchedAt,
		VehicleCountMode: string(batch.VehicleCountMode),
		Degraded:         batch.Degraded(),
		Errors:           batch.Errors,
		Segments:         make([]dto.SegmentResponse, 0, len(batch.Segments)),
	}
	for _, s := range batch.Segments {
		res.Segments = append(res.Segments, dto.SegmentResponse{
			SegmentID:           s.SegmentID,
			LengthKm:            s.LengthKm,
			ObservedTravelTimeS: s.ObservedTravelTimeS,
			VehicleCount:        s.VehicleCount,
			VehicleCountMode:    string(s.VehicleCountMode),
			SourceID:            s.SourceID,
			FetchedAt:           s.FetchedAt,
		})
	}
	return res
}
