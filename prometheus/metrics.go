package prometheus

import (
	"time"

	"github.com/thisloadme/one-ecommerce/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HttpRequestsTotal   prometheus.CounterVec
	HttpRequestDuration prometheus.HistogramVec

	// Authentication metrics
	AuthErrorsCounter prometheus.CounterVec

	// Tenant metrics
	TenantStoresGauge   prometheus.Gauge
	TenantResolveErrors prometheus.Counter

	// Checkout metrics
	CheckoutGroupsCounter prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration prometheus.HistogramVec
)

// InitMetrics initializes Prometheus metrics with configuration
func InitMetrics(config *config.Config) {
	prefix := config.Metrics.Prefix

	HttpRequestsTotal = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	AuthErrorsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_errors_total",
			Help: "Total number of authentication errors by reason",
		},
		[]string{"reason"},
	)

	TenantStoresGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_tenant_stores",
			Help: "Number of registered tenant stores",
		},
	)

	TenantResolveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenant_resolve_errors_total",
			Help: "Total number of failed tenant resolutions",
		},
	)

	CheckoutGroupsCounter = *promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_checkout_groups_total",
			Help: "Checkout tenant groups by outcome",
		},
		[]string{"outcome"},
	)

	DbOperationDuration = *promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
}

// RecordAuthError increments the auth error counter for a reason
func RecordAuthError(reason string) {
	AuthErrorsCounter.WithLabelValues(reason).Inc()
}

// RecordCheckoutGroup increments the checkout group counter by outcome
func RecordCheckoutGroup(outcome string) {
	CheckoutGroupsCounter.WithLabelValues(outcome).Inc()
}

// TrackDBOperation returns a function to defer for tracking DB operation duration
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DbOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
