package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ExceptionQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exception_queries_total",
			Help: "Total number of exception event queries by outcome (count)",
		},
		[]string{"status"},
	)

	ExceptionQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exception_query_duration_ms",
			Help:    "Duration of an exception query/render cycle in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	ExceptionRowsRendered = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exception_rows_rendered",
			Help:    "Number of data rows rendered per successful query (count)",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	ExceptionResultsDiscardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exception_results_discarded_total",
			Help: "Total number of query results discarded because a newer query superseded them (count)",
		},
	)

	LookupEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lookup_entries",
			Help: "Number of entries in the most recently loaded lookup snapshot (count)",
		},
		[]string{"kind"},
	)

	SessionsOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_opened_total",
			Help: "Total number of dashboard sessions opened by outcome (count)",
		},
		[]string{"status"},
	)

	FleetRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_api_requests_total",
			Help: "Total number of fleet API calls (count)",
		},
		[]string{"method", "type_name", "status"},
	)

	FleetRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_api_request_duration_ms",
			Help:    "Duration of fleet API calls in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"method", "type_name"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ExceptionQueriesTotal,
			ExceptionQueryDuration,
			ExceptionRowsRendered,
			ExceptionResultsDiscardedTotal,
			LookupEntries,
			SessionsOpenedTotal,
			FleetRequestsTotal,
			FleetRequestDuration,
			RetryAttemptsTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
		)
	})
}

func ObserveExceptionQuery(duration time.Duration, status string) {
	ExceptionQueriesTotal.WithLabelValues(status).Inc()
	ExceptionQueryDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveRowsRendered(count int) {
	ExceptionRowsRendered.Observe(float64(count))
}

func IncResultsDiscarded() {
	ExceptionResultsDiscardedTotal.Inc()
}

func SetLookupEntries(kind string, count int) {
	LookupEntries.WithLabelValues(kind).Set(float64(count))
}

func IncSessionsOpened(status string) {
	SessionsOpenedTotal.WithLabelValues(status).Inc()
}

func ObserveFleetRequest(method, typeName, status string, duration time.Duration) {
	FleetRequestsTotal.WithLabelValues(method, typeName, status).Inc()
	FleetRequestDuration.WithLabelValues(method, typeName).Observe(float64(duration.Milliseconds()))
}

func IncRetryAttempt(operation string) {
	RetryAttemptsTotal.WithLabelValues(operation).Inc()
}
