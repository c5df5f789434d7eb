package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsEmittedTotal counts records the output controller drained from a
	// monitor's buffer and wrote out; records head-dropped on overflow are
	// not counted.
	RecordsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebpfmon_records_emitted_total",
			Help: "Total number of records written out by the output controller",
		},
		[]string{"monitor"},
	)

	// RecordsDroppedTotal counts records dropped by head-drop-on-overflow in
	// a monitor's output buffer.
	RecordsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebpfmon_records_dropped_total",
			Help: "Total number of records dropped due to output buffer overflow",
		},
		[]string{"monitor"},
	)

	// DrainCycleDuration tracks the wall time of one aggregate snapshot-and-
	// drain pass or one streaming poll call.
	DrainCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ebpfmon_drain_cycle_duration_seconds",
			Help:    "Duration of one monitor drain cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"monitor"},
	)

	// MonitorsLoaded is the current count of monitors that completed Load().
	MonitorsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ebpfmon_monitors_loaded",
			Help: "Number of monitors currently loaded",
		},
	)

	// MonitorsRunning is the current count of monitors with an active drain
	// goroutine.
	MonitorsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ebpfmon_monitors_running",
			Help: "Number of monitors currently running",
		},
	)
)
