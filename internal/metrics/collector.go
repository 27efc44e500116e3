// Package metrics implements the monitoring collaborator boundary with an
// in-memory collector and an optional structured-log emitter.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"lingorelay/pkg/relay"
)

// Collector is a concurrency-safe in-memory MetricsSink. Snapshots feed
// diagnostics and tests.
type Collector struct {
	mu        sync.Mutex
	counters  map[string]int64
	gauges    map[string]float64
	durations map[string]durationStats
}

type durationStats struct {
	count int64
	total time.Duration
	max   time.Duration
}

// DurationSummary is an immutable view of recorded duration samples.
type DurationSummary struct {
	// Count is the number of recorded samples.
	Count int64
	// Mean is the average sample duration.
	Mean time.Duration
	// Max is the largest sample duration.
	Max time.Duration
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]int64),
		gauges:    make(map[string]float64),
		durations: make(map[string]durationStats),
	}
}

// IncCounter adds delta to the named counter.
func (c *Collector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters[name] += delta
}

// SetGauge replaces the named gauge value.
func (c *Collector) SetGauge(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gauges[name] = value
}

// ObserveDuration records one duration sample.
func (c *Collector) ObserveDuration(name string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.durations[name]
	stats.count++
	stats.total += d
	if d > stats.max {
		stats.max = d
	}
	c.durations[name] = stats
}

// Counter returns the current value of the named counter.
func (c *Collector) Counter(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counters[name]
}

// Gauge returns the current value of the named gauge.
func (c *Collector) Gauge(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gauges[name]
}

// Durations returns the summary for the named duration metric.
func (c *Collector) Durations(name string) DurationSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.durations[name]
	summary := DurationSummary{Count: stats.count, Max: stats.max}
	if stats.count > 0 {
		summary.Mean = stats.total / time.Duration(stats.count)
	}

	return summary
}

// Counters returns a copy of all counter values.
func (c *Collector) Counters() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]int64, len(c.counters))
	for name, value := range c.counters {
		snapshot[name] = value
	}

	return snapshot
}

var _ relay.MetricsSink = (*Collector)(nil)

// LoggingSink decorates another sink, mirroring every event to a debug log.
type LoggingSink struct {
	next   relay.MetricsSink
	logger *slog.Logger
}

// NewLoggingSink wraps next with debug logging.
func NewLoggingSink(next relay.MetricsSink, logger *slog.Logger) *LoggingSink {
	if next == nil {
		next = relay.NopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LoggingSink{next: next, logger: logger}
}

// IncCounter forwards and logs the event.
func (s *LoggingSink) IncCounter(name string, delta int64) {
	s.next.IncCounter(name, delta)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "metric counter",
		slog.String("name", name),
		slog.Int64("delta", delta),
	)
}

// SetGauge forwards and logs the event.
func (s *LoggingSink) SetGauge(name string, value float64) {
	s.next.SetGauge(name, value)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "metric gauge",
		slog.String("name", name),
		slog.Float64("value", value),
	)
}

// ObserveDuration forwards and logs the event.
func (s *LoggingSink) ObserveDuration(name string, d time.Duration) {
	s.next.ObserveDuration(name, d)
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "metric duration",
		slog.String("name", name),
		slog.Duration("value", d),
	)
}

var _ relay.MetricsSink = (*LoggingSink)(nil)
