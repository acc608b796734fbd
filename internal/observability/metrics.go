package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DetectorFailures counts detector errors recovered to a neutral signal.
	DetectorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_detector_failures_total",
		Help: "Detector failures recovered locally, by detector",
	}, []string{"detector"})

	// PolicyDecisions counts policy decisions by action and rule.
	PolicyDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_policy_decisions_total",
		Help: "Policy decisions by action and matching rule",
	}, []string{"action", "rule"})

	// EnforcementActions counts dispatched enforcement actions by outcome.
	EnforcementActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_enforcement_actions_total",
		Help: "Enforcement dispatches by action and result",
	}, []string{"action", "result"})

	// BestEffortFailures counts side effects that failed without aborting.
	BestEffortFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_best_effort_failures_total",
		Help: "Best-effort side effects that failed, by operation",
	}, []string{"operation"})

	// RestrictionsApplied counts restrictions written to the ledger.
	RestrictionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_restrictions_applied_total",
		Help: "Restrictions applied by mode",
	}, []string{"mode"})

	// ScanItems counts scanner stream entries by result.
	ScanItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_scan_items_total",
		Help: "Safety scanner stream entries by result",
	}, []string{"worker", "result"})

	// ScanBatchDuration records how long one consumed batch takes.
	ScanBatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_scan_batch_duration_seconds",
		Help:    "Duration of one consumed stream batch",
		Buckets: prometheus.DefBuckets,
	}, []string{"worker"})

	// SafetyVerdicts counts media verdicts by status.
	SafetyVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_safety_verdicts_total",
		Help: "Media safety verdicts by status",
	}, []string{"status"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackBatch returns a function that records batch duration for worker.
func TrackBatch(worker string) func() {
	start := time.Now()
	return func() {
		ScanBatchDuration.WithLabelValues(worker).Observe(time.Since(start).Seconds())
	}
}
