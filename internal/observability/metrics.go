// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation outcomes.
const (
	OutcomeComplete = "complete" // every fact resolved
	OutcomeDegraded = "degraded" // report emitted with unknown facts
	OutcomeError    = "error"    // no report (cancellation, invalid input)
)

// Cache events.
const (
	CacheHit      = "hit"
	CacheMiss     = "miss"
	CacheShared   = "shared" // waited on another caller's fetch
	CacheEviction = "eviction"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Evaluation metrics
	EvaluationsTotal   *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	FactFailures       *prometheus.CounterVec
	UnknownSignals     *prometheus.CounterVec
	Scores             prometheus.Histogram
	HighRiskReports    prometheus.Counter
	PublishErrors      *prometheus.CounterVec

	// Snapshot cache metrics
	CacheEvents  *prometheus.CounterVec
	CacheEntries prometheus.Gauge

	// Scheduler metrics
	QueueDrops      prometheus.Counter
	QueueDepth      prometheus.Gauge
	HighestSlotSeen prometheus.Gauge

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	APIRequests *prometheus.CounterVec
	RateLimited prometheus.Counter

	// Health metrics
	LastSuccessfulEvaluation prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "solana_risk_engine"
	}
	f := promauto.With(reg)

	return &Metrics{
		EvaluationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "total",
			Help:      "Total number of token evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Token evaluation latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		FactFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "fact_failures_total",
			Help:      "Total number of unresolved snapshot facts by fact",
		}, []string{"fact"}),
		UnknownSignals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "unknown_signals_total",
			Help:      "Total number of signals emitted with unknown confidence",
		}, []string{"signal"}),
		Scores: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "score",
			Help:      "Distribution of trust scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		HighRiskReports: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "high_risk_total",
			Help:      "Total number of reports scoring below the high-risk threshold",
		}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "publish_errors_total",
			Help:      "Total number of report publication failures by sink",
		}, []string{"sink"}),

		CacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot_cache",
			Name:      "events_total",
			Help:      "Snapshot cache events by type",
		}, []string{"event"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "snapshot_cache",
			Name:      "entries",
			Help:      "Current number of cached snapshots",
		}),

		QueueDrops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_drops_total",
			Help:      "Total number of evaluations skipped because the queue was full",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Current number of queued evaluations",
		}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls by method",
		}, []string{"method"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Total number of API requests rejected by the rate limiter",
		}),

		LastSuccessfulEvaluation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_evaluation_timestamp",
			Help:      "Unix timestamp of last successful evaluation",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordEvaluation records a finished evaluation.
func RecordEvaluation(outcome string, seconds float64) {
	DefaultMetrics.EvaluationsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.EvaluationDuration.Observe(seconds)
	if outcome != OutcomeError {
		DefaultMetrics.LastSuccessfulEvaluation.SetToCurrentTime()
	}
}

// RecordScore records the score of a published report.
func RecordScore(score int, highRisk bool) {
	DefaultMetrics.Scores.Observe(float64(score))
	if highRisk {
		DefaultMetrics.HighRiskReports.Inc()
	}
}

// RecordFactFailure increments the unresolved fact counter.
func RecordFactFailure(fact string) {
	DefaultMetrics.FactFailures.WithLabelValues(fact).Inc()
}

// RecordUnknownSignal increments the unknown signal counter.
func RecordUnknownSignal(signal string) {
	DefaultMetrics.UnknownSignals.WithLabelValues(signal).Inc()
}

// RecordPublishError records a failed report sink write.
func RecordPublishError(sink string) {
	DefaultMetrics.PublishErrors.WithLabelValues(sink).Inc()
}

// RecordCache records a snapshot cache event.
func RecordCache(event string) {
	DefaultMetrics.CacheEvents.WithLabelValues(event).Inc()
}

// RecordCacheEvictions records n evicted snapshots and the remaining size.
func RecordCacheEvictions(n, remaining int) {
	DefaultMetrics.CacheEvents.WithLabelValues(CacheEviction).Add(float64(n))
	DefaultMetrics.CacheEntries.Set(float64(remaining))
}

// SetCacheEntries updates the cache size gauge.
func SetCacheEntries(n int) {
	DefaultMetrics.CacheEntries.Set(float64(n))
}

// RecordQueueDrop increments the scheduler drop counter.
func RecordQueueDrop() {
	DefaultMetrics.QueueDrops.Inc()
}

// SetQueueDepth updates the scheduler queue gauge.
func SetQueueDepth(n int) {
	DefaultMetrics.QueueDepth.Set(float64(n))
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot int64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordRPCLatency records RPC call latency. Matches solana.LatencyObserver.
func RecordRPCLatency(method string, d time.Duration, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordAPIRequest counts an API response.
func RecordAPIRequest(route, code string) {
	DefaultMetrics.APIRequests.WithLabelValues(route, code).Inc()
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited() {
	DefaultMetrics.RateLimited.Inc()
}
