package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGemmMetrics(t *testing.T) {
	t.Run("GemmDuration", func(t *testing.T) {
		GemmDuration.Observe(0.5)
		GemmDuration.Observe(12.3)

		// Histograms cannot be read back with testutil; just verify observing
		// never panics.
		assert.NotPanics(t, func() {
			GemmDuration.Observe(100.0)
		})
	})

	t.Run("GemmGFLOPS", func(t *testing.T) {
		GemmGFLOPS.Set(123.45)
		value := testutil.ToFloat64(GemmGFLOPS)
		assert.Equal(t, float64(123.45), value)
	})

	t.Run("GemmCalls", func(t *testing.T) {
		before := testutil.ToFloat64(GemmCalls.WithLabelValues("host", "float64"))
		GemmCalls.WithLabelValues("host", "float64").Inc()
		GemmCalls.WithLabelValues("accelerator", "float32").Inc()
		after := testutil.ToFloat64(GemmCalls.WithLabelValues("host", "float64"))
		assert.Equal(t, before+1, after)
	})

	t.Run("GemmErrors", func(t *testing.T) {
		before := testutil.ToFloat64(GemmErrors.WithLabelValues("gemm"))
		GemmErrors.WithLabelValues("gemm").Inc()
		after := testutil.ToFloat64(GemmErrors.WithLabelValues("gemm"))
		assert.Equal(t, before+1, after)
	})
}

func TestDeviceMetrics(t *testing.T) {
	t.Run("DeviceMemoryInUse", func(t *testing.T) {
		DeviceMemoryInUse.Set(1073741824) // 1GB
		value := testutil.ToFloat64(DeviceMemoryInUse)
		assert.Equal(t, float64(1073741824), value)
	})

	t.Run("DeviceAllocs", func(t *testing.T) {
		before := testutil.ToFloat64(DeviceAllocs)
		DeviceAllocs.Inc()
		after := testutil.ToFloat64(DeviceAllocs)
		assert.Equal(t, before+1, after)
	})

	t.Run("DeviceTransferBytes", func(t *testing.T) {
		before := testutil.ToFloat64(DeviceTransferBytes.WithLabelValues("in"))
		DeviceTransferBytes.WithLabelValues("in").Add(4096)
		after := testutil.ToFloat64(DeviceTransferBytes.WithLabelValues("in"))
		assert.Equal(t, before+4096, after)
	})
}

func TestMetricsRegistration(t *testing.T) {
	// Ensure all metrics are properly registered
	collectors := []prometheus.Collector{
		GemmCalls,
		GemmDuration,
		GemmGFLOPS,
		GemmErrors,
		DeviceAllocs,
		DeviceReuses,
		DeviceMemoryInUse,
		DeviceTransferBytes,
	}

	for _, collector := range collectors {
		assert.NotPanics(t, func() {
			_ = prometheus.Register(collector)
			prometheus.Unregister(collector)
		})
	}
}

func BenchmarkMetricsObservation(b *testing.B) {
	b.Run("ObserveDuration", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			GemmDuration.Observe(float64(i % 1000))
		}
	})

	b.Run("IncCounter", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			GemmCalls.WithLabelValues("host", "float32").Inc()
		}
	})
}
