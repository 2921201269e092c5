package telemetry

import (
	"testing"
	"time"
)

func BenchmarkMetricsRecording(b *testing.B) {
	metrics := NewCollector(true)

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		metrics.Timer("teatime_kettle_probe_duration", time.Millisecond, nil)
		if i%10 == 0 {
			metrics.Counter("teatime_fallback_boils", 1, nil)
		}
	}
}

func BenchmarkConcurrentMetrics(b *testing.B) {
	metrics := NewCollector(true)

	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			metrics.Counter("teatime_runs", 1, map[string]string{"status": "succeeded"})
		}
	})
}

func BenchmarkDisabledCollector(b *testing.B) {
	metrics := NewCollector(false)
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		metrics.Counter("teatime_runs", 1, nil)
	}
}
