package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obaraelijah/LeafLine-Server/pkg/health"
	"github.com/obaraelijah/LeafLine-Server/pkg/middleware"
)

// requestTimeout leaves room for the gateway timeout plus the database work
// around it.
const requestTimeout = 30 * time.Second

// NewRouter creates a chi router with all LeafLine order routes registered.
func NewRouter(
	orderHandler *OrderHandler,
	healthHandler *health.Handler,
	validateToken middleware.TokenValidator,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing)
	r.Use(middleware.PrometheusMetrics)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/order", func(r chi.Router) {
		r.Use(middleware.Auth(validateToken))
		r.Use(middleware.RequestLogger(logger))
		r.Use(ContentTypeJSON)

		r.Post("/", orderHandler.PlaceOrder)
		r.Get("/", orderHandler.ListOrders)
		r.Get("/{orderId}", orderHandler.GetOrder)
		r.With(middleware.RequireRole(middleware.RoleAdmin)).
			Patch("/{orderId}/update-status", orderHandler.UpdateOrderStatus)
	})

	return r
}
