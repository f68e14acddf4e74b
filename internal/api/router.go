package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds the database probe made by the health endpoint.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{name}", s.handleGetDevice)
		})

		r.Get("/groups", s.handleListGroups)

		r.Route("/states/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Put("/", s.handleSetState)
		})
	})

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/api/v1/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	return r
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Connected bool   `json:"connected"`
	Bridge    string `json:"bridge"`
	Database  string `json:"database,omitempty"`
	MQTT      string `json:"mqtt,omitempty"`
}

// handleHealth reports the adapter's connection indicator and the state
// of optional infrastructure. It returns 503 when the adapter is not
// connected or the database probe fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Connected: s.bridge.Connected(),
		Bridge:    string(s.bridge.Health().Status),
	}
	status := http.StatusOK
	if !resp.Connected {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		resp.Database = "ok"
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp.Database = "unhealthy"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	if s.mqtt != nil {
		resp.MQTT = "disconnected"
		if s.mqtt.IsConnected() {
			resp.MQTT = "connected"
		}
	}

	writeJSON(w, status, resp)
}
