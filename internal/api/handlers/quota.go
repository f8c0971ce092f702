package handlers

import (
	"net/http"

	"traffic-probe-service/internal/api/dto"
	"traffic-probe-service/internal/ratelimit"
)

type QuotaHandler struct {
	Limiter          *ratelimit.Limiter
	Service          string
	QuotaPerHour     int
	CredentialLoaded bool
}

// Quota reports upstream budget consumption for the dashboard. Reading the
// status never counts as a call.
func (h *QuotaHandler) Quota(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := h.Limiter.QuotaStatus(h.Service, h.QuotaPerHour)

	res := dto.QuotaResponse{
		Service:          h.Service,
		CallsThisHour:    status.CallsThisHour,
		QuotaPerHour:     status.QuotaPerHour,
		Remaining:        status.Remaining,
		PercentUsed:      status.PercentUsed,
		MinIntervalSecs:  h.Limiter.MinInterval().Seconds(),
		CredentialLoaded: h.CredentialLoaded,
	}
	if age, ok := h.Limiter.LastCallAge(h.Service); ok {
		secs := age.Seconds()
		res.LastCallAgeSecs = &secs
	}

	writeJSON(w, r, http.StatusOK, res)
}
