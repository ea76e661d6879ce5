package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GEMM dispatch metrics
	GemmCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hetblas_gemm_calls_total",
		Help: "The total number of GEMM calls by route and element kind",
	}, []string{"route", "kind"})

	GemmDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hetblas_gemm_duration_ms",
		Help:    "Duration of GEMM calls in milliseconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 20), // 10us to ~5s
	})

	GemmGFLOPS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hetblas_gemm_gflops",
		Help: "Performance of the last GEMM call in GFLOPS",
	})

	GemmErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hetblas_gemm_errors_total",
		Help: "Total number of failed accelerator GEMM calls by phase",
	}, []string{"phase"})

	// Device memory metrics
	DeviceAllocs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hetblas_device_allocs_total",
		Help: "Total number of raw device memory allocations",
	})

	DeviceReuses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hetblas_device_reuses_total",
		Help: "Total number of pool hits that reused a cached device block",
	})

	DeviceMemoryInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hetblas_device_memory_in_use_bytes",
		Help: "Device memory currently handed out by the pool in bytes",
	})

	DeviceTransferBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hetblas_device_transfer_bytes_total",
		Help: "Bytes staged between host and device by direction",
	}, []string{"direction"})
)
