package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Caliper/internal/contextkey"
	"github.com/MikeSquared-Agency/Caliper/internal/learning"
	"github.com/MikeSquared-Agency/Caliper/internal/outcome"
	"github.com/MikeSquared-Agency/Caliper/internal/performance"
	"github.com/MikeSquared-Agency/Caliper/internal/validation"
)

func NewRouter(l *learning.Service, c *outcome.Collector, t *performance.Tracker, v *validation.Service, keys *contextkey.Generator, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(240))

	weights := NewWeightsHandler(l, keys)
	outcomes := NewOutcomesHandler(c, keys)
	admin := NewAdminHandler(l, t, v)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(TenantIDMiddleware)

		r.Get("/weights", weights.Get)
		r.Post("/learn", weights.Learn)
		r.Post("/outcomes/predictions", outcomes.CreatePrediction)
		r.Post("/outcomes", outcomes.CreateOutcome)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/admin/weights", admin.Weights)
			r.Get("/admin/performance", admin.Performance)
			r.Post("/admin/validate", admin.Validate)
			r.Post("/admin/rollback", admin.Rollback)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
