package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Black-And-White-Club/beauty-contest/app/httpx"
)

// NewHTTPRouter returns the root mux with the shared middleware, a health
// probe and the metrics endpoint. Modules mount their own routes on it.
func NewHTTPRouter(reg *prometheus.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		httpx.CorrelationMiddleware,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}
