package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ScansTotal counts detection requests served
	ScansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinelx",
			Name:      "scans_total",
			Help:      "Total number of scan requests processed",
		},
	)

	// ScansByStatus counts terminal scan statuses
	ScansByStatus = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinelx",
			Name:      "scans_by_status_total",
			Help:      "Scan results by terminal status",
		},
		[]string{"status"},
	)

	// RulesAdded counts rules accepted into the corpus
	RulesAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinelx",
			Name:      "rules_added_total",
			Help:      "Detection rules accepted into the corpus",
		},
		[]string{"source"},
	)

	// SyncCycles counts aggregation cycles
	SyncCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinelx",
			Name:      "sync_cycles_total",
			Help:      "Feed aggregation cycles by result",
		},
		[]string{"status"},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the global Prometheus
// registry. Idempotent, safe to call from multiple entry points.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(ScansTotal)
		prometheus.DefaultRegisterer.Register(ScansByStatus)
		prometheus.DefaultRegisterer.Register(RulesAdded)
		prometheus.DefaultRegisterer.Register(SyncCycles)
	})
}
