package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/user/odds-crawler/internal/delivery/http/handler"
	"github.com/user/odds-crawler/internal/delivery/http/middleware"
	"github.com/user/odds-crawler/pkg/logger"
	"github.com/user/odds-crawler/pkg/metrics"
)

// New builds the status API. gatherer backs /metrics.
func New(h *handler.Handler, gatherer prometheus.Gatherer, m *metrics.Metrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger.OrDiscard(log)))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/dates", h.HandleEnqueueDates)
		r.Get("/ledgers/{date}", h.HandleGetLedger)
		r.Get("/ledgers/{date}/items/{id}", h.HandleGetItem)
		r.Get("/ledgers/{date}/failed", h.HandleGetDeadLetters)
	})

	return r
}
