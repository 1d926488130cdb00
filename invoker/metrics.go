package invoker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call result labels.
const (
	resultSuccess       = "success"
	resultExhausted     = "exhausted"
	resultUnrecoverable = "unrecoverable"
	resultAborted       = "aborted"
)

var (
	// AttemptsTotal counts individual attempts, including retries.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpcinvoker_attempts_total",
			Help: "Total number of invocation attempts",
		},
		[]string{"invoker", "operation"},
	)

	// CallsTotal counts completed top-level calls by result.
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rpcinvoker_calls_total",
			Help: "Total number of completed calls by result",
		},
		[]string{"invoker", "operation", "result"},
	)

	// CallDuration measures the total duration of top-level calls.
	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpcinvoker_call_duration_seconds",
			Help:    "Total duration of calls in seconds, including backoff waits",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"invoker", "operation", "result"},
	)

	// BackoffDuration measures the waits inserted between attempts.
	BackoffDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rpcinvoker_backoff_duration_seconds",
			Help:    "Duration of backoff waits in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"invoker", "operation"},
	)
)

// recordAttempt records the start of one attempt.
func recordAttempt(invoker, operation string) {
	AttemptsTotal.WithLabelValues(invoker, operation).Inc()
}

// recordCall records a completed call with its result and duration.
func recordCall(invoker, operation, result string, durationSeconds float64) {
	CallsTotal.WithLabelValues(invoker, operation, result).Inc()
	CallDuration.WithLabelValues(invoker, operation, result).Observe(durationSeconds)
}

// recordBackoff records one backoff wait.
func recordBackoff(invoker, operation string, durationSeconds float64) {
	BackoffDuration.WithLabelValues(invoker, operation).Observe(durationSeconds)
}
