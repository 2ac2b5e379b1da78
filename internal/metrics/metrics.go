package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecovend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecovend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	ledgerOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecovend",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger commands by activity kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	ledgerCoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecovend",
			Subsystem: "ledger",
			Name:      "coins_total",
			Help:      "Absolute coins moved by activity kind.",
		},
		[]string{"kind"},
	)

	classifierRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecovend",
			Subsystem: "classifier",
			Name:      "requests_total",
			Help:      "Classifier calls by outcome.",
		},
		[]string{"outcome"},
	)

	classifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ecovend",
			Subsystem: "classifier",
			Name:      "request_duration_seconds",
			Help:      "Latency of classifier calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		ledgerOperations,
		ledgerCoins,
		classifierRequests,
		classifierDuration,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler records request counts and latency per chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordLedgerOperation counts one ledger command.
func RecordLedgerOperation(kind string, delta int64, err error) {
	if err != nil {
		ledgerOperations.WithLabelValues(kind, "rejected").Inc()
		return
	}
	ledgerOperations.WithLabelValues(kind, "applied").Inc()
	if delta < 0 {
		delta = -delta
	}
	ledgerCoins.WithLabelValues(kind).Add(float64(delta))
}

// RecordClassification counts one classifier call.
func RecordClassification(outcome string, elapsed time.Duration) {
	classifierRequests.WithLabelValues(outcome).Inc()
	classifierDuration.Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
