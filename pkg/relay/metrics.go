package relay

import "time"

// Canonical metric names emitted at dispatcher stage boundaries.
const (
	// MetricCacheHits counts cache lookups served without a remote call.
	MetricCacheHits = "cache_hits"
	// MetricCacheMisses counts cache lookups that required dispatch.
	MetricCacheMisses = "cache_misses"
	// MetricQuotaAllowed counts immediate governor admissions.
	MetricQuotaAllowed = "quota_allowed"
	// MetricQuotaDelayed counts delayed governor admissions.
	MetricQuotaDelayed = "quota_delayed"
	// MetricQuotaRejected counts refused governor admissions.
	MetricQuotaRejected = "quota_rejected"
	// MetricRemoteCalls counts issued remote translation calls.
	MetricRemoteCalls = "remote_calls"
	// MetricRemoteErrors counts failed remote translation calls.
	MetricRemoteErrors = "remote_errors"
	// MetricRemoteLatency observes remote call duration.
	MetricRemoteLatency = "remote_latency"
	// MetricPersistFailures counts unaudited attempts whose durable write failed.
	MetricPersistFailures = "persist_failures"
	// MetricRequestsCompleted counts requests reaching the Completed state.
	MetricRequestsCompleted = "requests_completed"
	// MetricRequestsFailed counts requests reaching the Failed state.
	MetricRequestsFailed = "requests_failed"
	// MetricMonthlyCharsUsed gauges the persisted monthly character spend.
	MetricMonthlyCharsUsed = "monthly_chars_used"
)

// MetricsSink receives counter, gauge, and duration events for the external
// monitoring collaborator.
//
// Implementations must be concurrency-safe and must never block dispatch.
type MetricsSink interface {
	// IncCounter adds delta to the named counter.
	IncCounter(name string, delta int64)
	// SetGauge replaces the named gauge value.
	SetGauge(name string, value float64)
	// ObserveDuration records one duration sample for the named metric.
	ObserveDuration(name string, d time.Duration)
}

// NopMetrics is a MetricsSink that discards every event.
type NopMetrics struct{}

// IncCounter discards the event.
func (NopMetrics) IncCounter(string, int64) {}

// SetGauge discards the event.
func (NopMetrics) SetGauge(string, float64) {}

// ObserveDuration discards the event.
func (NopMetrics) ObserveDuration(string, time.Duration) {}

var _ MetricsSink = NopMetrics{}
