package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "workflow_layer",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow_layer",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "workflow_layer",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow_layer",
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Total number of transition requests by entity type and outcome.",
		},
		[]string{"entity_type", "outcome"},
	)

	sideEffectRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workflow_layer",
			Subsystem: "workflow",
			Name:      "side_effect_retries_total",
			Help:      "Total number of side-effect execution retries.",
		},
	)

	ledgerAppends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workflow_layer",
			Subsystem: "ledger",
			Name:      "entries_appended_total",
			Help:      "Total number of ledger entries appended by type.",
		},
		[]string{"type"},
	)

	reconciliationDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "workflow_layer",
			Subsystem: "ledger",
			Name:      "reconciliation_drift_accounts",
			Help:      "Number of accounts whose cached balance disagreed with the ledger at the last sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		transitions,
		sideEffectRetries,
		ledgerAppends,
		reconciliationDrift,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTransition records the outcome of a transition request.
func RecordTransition(entityType, outcome string) {
	transitions.WithLabelValues(entityType, outcome).Inc()
}

// RecordSideEffectRetry counts one side-effect retry attempt.
func RecordSideEffectRetry() {
	sideEffectRetries.Inc()
}

// RecordLedgerAppend counts one appended ledger entry.
func RecordLedgerAppend(entryType string) {
	ledgerAppends.WithLabelValues(entryType).Inc()
}

// SetReconciliationDrift reports the number of drifted accounts found by the
// last reconciliation sweep.
func SetReconciliationDrift(accounts int) {
	reconciliationDrift.Set(float64(accounts))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	// Collapse /api/v1/accounts/{id}/... to a bounded label set.
	if len(parts) >= 3 && parts[0] == "api" {
		resource := parts[2]
		if resource == "accounts" && len(parts) >= 5 {
			return "/api/v1/accounts/:account/" + parts[4]
		}
		if resource == "accounts" && len(parts) == 4 {
			return "/api/v1/accounts/:account"
		}
		return "/api/v1/" + resource
	}
	return "/" + parts[0]
}
