package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Name        string            `json:"name"`
	Status      HealthStatus      `json:"status"`
	Message     string            `json:"message"`
	LastChecked time.Time         `json:"last_checked"`
	Duration    time.Duration     `json:"duration"`
	Details     map[string]string `json:"details,omitempty"`
}

// HealthResponse is the body served by HealthHandler.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []HealthCheck `json:"checks"`
}

// HealthHandler runs every check on each request and answers 503 unless all
// of them are healthy.
func HealthHandler(checks map[string]func() HealthCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now(), Checks: runHealthChecks(checks)}
		for _, check := range resp.Checks {
			if check.Status == HealthStatusUnhealthy {
				resp.Status = HealthStatusUnhealthy
				break
			} else if check.Status == HealthStatusDegraded {
				resp.Status = HealthStatusDegraded
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != HealthStatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func runHealthChecks(checks map[string]func() HealthCheck) []HealthCheck {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]HealthCheck, 0, len(names))
	for _, name := range names {
		start := time.Now()
		check := checks[name]()
		check.Duration = time.Since(start)
		check.LastChecked = time.Now()
		out = append(out, check)
	}
	return out
}

// MetricsHandler serves the collector in Prometheus text format. Counters and
// timers are summed per name and label set, gauges keep the last value.
func MetricsHandler(c *Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type series struct {
			name, labels string
			typ          MetricType
			value        float64
		}
		index := map[string]*series{}
		var order []*series
		for _, m := range c.GetMetrics() {
			labels := formatLabels(m.Labels)
			key := m.Name + labels
			s, ok := index[key]
			if !ok {
				s = &series{name: m.Name, labels: labels, typ: m.Type}
				index[key] = s
				order = append(order, s)
			}
			if m.Type == Gauge {
				s.value = m.Value
			} else {
				s.value += m.Value
			}
		}
		sort.SliceStable(order, func(i, j int) bool { return order[i].name < order[j].name })

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		last := ""
		for _, s := range order {
			if s.name != last {
				fmt.Fprintf(w, "# TYPE %s %s\n", s.name, promType(s.typ))
				last = s.name
			}
			fmt.Fprintf(w, "%s%s %g\n", s.name, s.labels, s.value)
		}
	})
}

func promType(t MetricType) string {
	if t == Gauge {
		return "gauge"
	}
	return "counter"
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, v))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

// DefaultHealthChecks returns a set of default health checks
func DefaultHealthChecks() map[string]func() HealthCheck {
	return map[string]func() HealthCheck{
		"memory": func() HealthCheck {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			heapMB := float64(m.HeapAlloc) / (1024 * 1024)
			status := HealthStatusHealthy
			message := fmt.Sprintf("Heap memory: %.2f MB", heapMB)

			if heapMB > 1000 {
				status = HealthStatusDegraded
				message = fmt.Sprintf("High memory usage: %.2f MB", heapMB)
			}
			if heapMB > 2000 {
				status = HealthStatusUnhealthy
				message = fmt.Sprintf("Critical memory usage: %.2f MB", heapMB)
			}

			return HealthCheck{
				Name:    "memory",
				Status:  status,
				Message: message,
				Details: map[string]string{"heap_mb": fmt.Sprintf("%.2f", heapMB)},
			}
		},
		"goroutines": func() HealthCheck {
			count := runtime.NumGoroutine()
			status := HealthStatusHealthy
			if count > 5000 {
				status = HealthStatusDegraded
			}
			return HealthCheck{
				Name:    "goroutines",
				Status:  status,
				Message: fmt.Sprintf("Goroutines: %d", count),
				Details: map[string]string{"count": fmt.Sprintf("%d", count)},
			}
		},
	}
}
