// Package server provides HTTP server setup for the detection API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/common/middleware"
	"github.com/telhawk-systems/socdetect/internal/config"
	"github.com/telhawk-systems/socdetect/internal/handlers"
)

// NewRouter constructs a chi router with the API routes registered.
func NewRouter(h *handlers.Handler, cfg config.ServerConfig, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-Id"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           10 * time.Minute,
	}))

	r.Get("/healthz", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/rules", h.ListRules)

		r.Route("/logs", func(r chi.Router) {
			r.Post("/parse", h.ParseLog)
			r.Post("/analyze", h.AnalyzeLog)
			r.Get("/stats", h.Stats)
			r.Delete("/{fileName}/alerts", h.PurgeFileAlerts)
		})

		r.Post("/alerts/{id}/risk-score", h.ScoreAlert)
	})

	return r
}
