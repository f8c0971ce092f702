package handlers

import (
	"log"
	"net/http"
	"strconv"

	"traffic-probe-service/internal/api/dto"
	"traffic-probe-service/internal/ports"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type HistoryHandler struct {
	Repo ports.RunRepository
}

// History lists recent acquisition runs, newest first.
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	runs, err := h.Repo.ListRuns(r.Context(), limit)
	if err != nil {
		log.Printf("list runs failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListRunResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for _, rec := range runs {
		res.Runs = append(res.Runs, dto.RunResponse{
			RunID:             rec.RunID,
			RecordedAt:        rec.RecordedAt,
			FetchedAt:         rec.FetchedAt,
			Mode:              string(rec.Mode),
			SourceID:          rec.SourceID,
			VehicleCountMode:  string(rec.VehicleCountMode),
			SegmentCount:      rec.SegmentCount,
			TotalLengthKm:     rec.TotalLengthKm,
			TotalVehicleCount: rec.TotalVehicleCount,
			MeanConfidence:    rec.MeanConfidence,
			Degraded:          rec.Degraded,
			ErrorNote:         rec.ErrorNote,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
