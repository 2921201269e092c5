package telemetry

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter MetricType = "counter"
	Gauge   MetricType = "gauge"
	Timer   MetricType = "timer"
)

// Metric represents a telemetry metric
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Unit      string            `json:"unit,omitempty"`
}

// Collector buffers metrics for one process run. A nil or disabled Collector
// drops everything, so components can record unconditionally.
type Collector struct {
	mu      sync.RWMutex
	metrics []Metric
	enabled bool
	now     func() time.Time
}

// NewCollector creates a new telemetry collector
func NewCollector(enabled bool) *Collector {
	return &Collector{
		metrics: make([]Metric, 0),
		enabled: enabled,
		now:     time.Now,
	}
}

// Counter increments a counter metric
func (c *Collector) Counter(name string, value float64, labels map[string]string) {
	c.addMetric(Metric{Name: name, Type: Counter, Value: value, Labels: labels})
}

// Gauge sets a gauge metric value
func (c *Collector) Gauge(name string, value float64, labels map[string]string) {
	c.addMetric(Metric{Name: name, Type: Gauge, Value: value, Labels: labels})
}

// Timer records a duration measurement
func (c *Collector) Timer(name string, duration time.Duration, labels map[string]string) {
	c.addMetric(Metric{
		Name:   name,
		Type:   Timer,
		Value:  float64(duration.Milliseconds()),
		Labels: labels,
		Unit:   "ms",
	})
}

func (c *Collector) addMetric(metric Metric) {
	if c == nil || !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	metric.Timestamp = c.now()
	c.metrics = append(c.metrics, metric)
}

// GetMetrics returns a copy of current metrics
func (c *Collector) GetMetrics() []Metric {
	if c == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Metric, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// Sum adds up the values of every metric with the given name.
func (c *Collector) Sum(name string) float64 {
	var total float64
	for _, m := range c.GetMetrics() {
		if m.Name == name {
			total += m.Value
		}
	}
	return total
}

// Flush writes buffered metrics to the logger at debug level and clears the buffer.
func (c *Collector) Flush(logger zerolog.Logger) int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	metrics := c.metrics
	c.metrics = make([]Metric, 0, len(metrics))
	c.mu.Unlock()

	sort.SliceStable(metrics, func(i, j int) bool { return metrics[i].Timestamp.Before(metrics[j].Timestamp) })
	for _, metric := range metrics {
		logger.Debug().
			Str("name", metric.Name).
			Str("type", string(metric.Type)).
			Float64("value", metric.Value).
			Str("unit", metric.Unit).
			Interface("labels", metric.Labels).
			Msg("telemetry_metric")
	}
	return len(metrics)
}
