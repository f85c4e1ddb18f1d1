package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpane_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpane_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpane_query_executions_total",
			Help: "Total number of query executions by outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpane_query_duration_ms",
			Help:    "Wall-clock query execution time in milliseconds, including decoding.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)
	queryRowsDecoded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpane_query_rows_decoded_total",
			Help: "Total number of result rows decoded.",
		},
	)
	decodeFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpane_decode_fallbacks_total",
			Help: "Cells that decoded to Null because a typed read failed.",
		},
		[]string{"type_id"},
	)

	staleCompletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpane_stale_completions_total",
			Help: "Execution completions discarded because a newer execution was dispatched on the same cell.",
		},
	)
	executionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlpane_executions_in_flight",
			Help: "Executions currently running in the background pool.",
		},
	)
	executionsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpane_executions_rejected_total",
			Help: "Executions refused because every pool worker was busy.",
		},
	)

	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpane_exports_total",
			Help: "Total number of result exports by format and sink.",
		},
		[]string{"format", "sink"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		queryExecutionsTotal,
		queryDurationMs,
		queryRowsDecoded,
		decodeFallbacksTotal,
		staleCompletionsTotal,
		executionsInFlight,
		executionsRejectedTotal,
		exportsTotal,
	)
}

// ObserveQueryExecution records one finished query. outcome is "success" or
// "error".
func ObserveQueryExecution(outcome string, rows int, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(outcome).Inc()
	queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	if rows > 0 {
		queryRowsDecoded.Add(float64(rows))
	}
}

func IncrementDecodeFallback(typeID string) {
	decodeFallbacksTotal.WithLabelValues(typeID).Inc()
}

func IncrementStaleCompletion() {
	staleCompletionsTotal.Inc()
}

func ExecutionStarted()  { executionsInFlight.Inc() }
func ExecutionFinished() { executionsInFlight.Dec() }
func ExecutionRejected() { executionsRejectedTotal.Inc() }

func ObserveExport(format, sink string) {
	exportsTotal.WithLabelValues(format, sink).Inc()
}
