package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	RegistrationsSubmitted prometheus.Counter
	PaymentsInitialized    prometheus.Counter

	// Reconciliation metrics
	ReconcileRuns     *prometheus.CounterVec
	ReconcileAttempts prometheus.Histogram
	CacheFallbacks    prometheus.Counter

	// Upstream transport metrics
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec

	ActiveAdminSessions prometheus.Gauge
	AuthFailures        prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RegistrationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regpay_registrations_submitted_total",
			Help: "Total number of registrations submitted to the backend",
		}),
		PaymentsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regpay_payments_initialized_total",
			Help: "Total number of payment sessions initialized",
		}),
		ReconcileRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regpay_reconcile_runs_total",
			Help: "Reconciliation runs by terminal state",
		}, []string{"state"}),
		ReconcileAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "regpay_reconcile_attempts",
			Help:    "Verification attempts made per reconciliation run",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		CacheFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regpay_reconcile_cache_fallbacks_total",
			Help: "Receipts synthesized from the local registration cache",
		}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regpay_upstream_latency_seconds",
			Help:    "Latency of backend API calls in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "regpay_upstream_errors_total",
			Help: "Backend API failures by error code",
		}, []string{"code"}),
		ActiveAdminSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "regpay_active_admin_sessions",
			Help: "Current number of active admin sessions",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "regpay_auth_failures_total",
			Help: "Total number of admin authentication failures",
		}),
	}
}
