// Package httptransport is the thin HTTP layer of the gateway. Handlers
// delegate to domain services and never embed business logic.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"regpay/internal/admin"
	"regpay/internal/event"
	"regpay/internal/payment"
	"regpay/internal/platform/config"
	"regpay/internal/platform/metrics"
	"regpay/internal/reconcile"
	"regpay/internal/registration/store"
	"regpay/internal/upstream"
	"regpay/pkg/platform/middleware"
)

// Handler holds the domain services the HTTP surface delegates to.
type Handler struct {
	events    *event.Service
	payments  *payment.Service
	admins    *admin.Service
	engine    *reconcile.Engine
	snapshots store.Store
	client    *upstream.Client
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// resolves collapses concurrent reconciliation requests for the same
	// reference into one engine run.
	resolves singleflight.Group
}

// NewHandler wires the HTTP layer to the domain services.
func NewHandler(events *event.Service, payments *payment.Service, admins *admin.Service, engine *reconcile.Engine, snapshots store.Store, client *upstream.Client, m *metrics.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		events:    events,
		payments:  payments,
		admins:    admins,
		engine:    engine,
		snapshots: snapshots,
		client:    client,
		metrics:   m,
		logger:    logger.With(slog.String("component", "http")),
	}
}

// NewRouter wires all endpoints with the middleware chain. Receipt routes get
// a long timeout because a reconciliation run spans several verification
// attempts with backoff in between.
func NewRouter(h *Handler, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.DefaultTimeout))
			r.Get("/events", h.handleEvent)
			r.Post("/registrations", h.handleRegister)
		})

		r.Group(func(r chi.Router) {
			// Five attempts plus the full backoff ramp.
			r.Use(middleware.Timeout(cfg.LongTimeout + cfg.DefaultTimeout))
			r.Get("/payments/reconcile", h.handlePaymentReconcile)
			r.Get("/receipts/{reference}", h.handleReceipt)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.LongTimeout))
			r.Post("/register", h.handleAdminRegister)
			r.Post("/login", h.handleAdminLogin)
			r.Post("/logout", h.handleAdminLogout)
			r.Post("/change-password", h.handleAdminChangePassword)
			r.Post("/events", h.handleAdminCreateEvent)
			r.Put("/events/amount", h.handleAdminUpdateEventFee)
			r.Get("/registrations", h.handleAdminRegistrations)
			r.Get("/registrations/{id}", h.handleAdminRegistrationByID)
			r.Get("/payments", h.handleAdminPayments)
			r.Get("/export", h.handleAdminExport)
			r.Get("/receipts/{reference}", h.handleAdminValidateReceipt)
		})
	})

	return r
}
