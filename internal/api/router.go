package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"traffic-probe-service/internal/api/handlers"
	"traffic-probe-service/internal/domain"
	"traffic-probe-service/internal/ports"
	"traffic-probe-service/internal/ratelimit"
)

// RouterConfig carries the wiring the handlers need beyond their ports.
type RouterConfig struct {
	DefaultMode      domain.Mode
	Service          string
	QuotaPerHour     int
	CredentialLoaded bool
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(collector handlers.BatchCollector, runs ports.RunRepository, limiter *ratelimit.Limiter, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	trafficHandler := &handlers.TrafficHandler{
		Collector:   collector,
		DefaultMode: cfg.DefaultMode,
	}
	historyHandler := &handlers.HistoryHandler{Repo: runs}
	quotaHandler := &handlers.QuotaHandler{
		Limiter:          limiter,
		Service:          cfg.Service,
		QuotaPerHour:     cfg.QuotaPerHour,
		CredentialLoaded: cfg.CredentialLoaded,
	}

	mux.HandleFunc("/health", handlers.Health)
	mux.HandleFunc("/traffic", trafficHandler.Traffic)
	mux.HandleFunc("/history", historyHandler.History)
	mux.HandleFunc("/quota", quotaHandler.Quota)
	mux.Handle("/metrics", promhttp.Handler())

	return loggingMiddleware(mux)
}
