package metrics

import "github.com/prometheus/client_golang/prometheus"

// Docking Prometheus metrics.
var (
	DockingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dockapi",
			Name:      "docking_requests_total",
			Help:      "Total number of docking engine calls",
		},
		[]string{"driver", "status"}, // status: success, failure, timeout, error
	)

	DockingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dockapi",
			Name:      "docking_duration_seconds",
			Help:      "Docking engine call duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"driver"},
	)

	DockingInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dockapi",
			Name:      "docking_inflight",
			Help:      "Docking engine calls currently running",
		},
	)

	DockingQueueWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dockapi",
			Name:      "docking_queue_wait_seconds",
			Help:      "Time spent waiting for a free engine slot",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		},
	)

	DockingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dockapi",
			Name:      "docking_cache_total",
			Help:      "Docking result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var dockingMetricsRegistered bool

// RegisterDockingMetrics registers Prometheus docking metrics. Must be called once from main.
func RegisterDockingMetrics() {
	if dockingMetricsRegistered {
		return
	}
	prometheus.MustRegister(DockingRequestsTotal)
	prometheus.MustRegister(DockingDuration)
	prometheus.MustRegister(DockingInflight)
	prometheus.MustRegister(DockingQueueWait)
	prometheus.MustRegister(DockingCacheTotal)
	dockingMetricsRegistered = true
}
