package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/daap14/billstore/internal/api/handler"
	"github.com/daap14/billstore/internal/api/middleware"
	"github.com/daap14/billstore/internal/api/response"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DB      handler.DBPinger
	Version string

	// Gatherer serves /metrics; nil leaves the endpoint unregistered.
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", middleware.GetRequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Err(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", middleware.GetRequestID(r.Context()))
	})

	healthHandler := handler.NewHealthHandler(deps.DB, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
