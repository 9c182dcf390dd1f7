// Package metrics exposes the supervisor's health counters as Prometheus
// gauges/counters, mirroring the teacher's internal/interfaces/http
// metrics wiring but scoped to the analysis core's own health surface
// (spec §7: "every aborted tick increments the health counter").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "corelens_ticks_run_total",
		Help: "Total analysis ticks executed.",
	})

	TicksAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corelens_ticks_aborted_total",
		Help: "Total analysis ticks aborted, by cause.",
	}, []string{"cause"})

	EngineFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corelens_engine_failures_total",
		Help: "Total engine failures contained by the supervisor, by engine.",
	}, []string{"engine"})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "corelens_alerts_emitted_total",
		Help: "Total alerts emitted, by type.",
	}, []string{"type"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "corelens_tick_duration_seconds",
		Help:    "Wall-clock duration of a completed analysis tick.",
		Buckets: prometheus.DefBuckets,
	})

	CurrentPhase = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "corelens_phase",
		Help: "1 if the current SVD phase matches the label, else 0.",
	}, []string{"phase"})

	DataQuality = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "corelens_data_quality",
		Help: "Overall data quality score of the most recent tick.",
	})
)

// SetPhase flips the gauge for the active phase to 1 and all others to 0.
func SetPhase(active string) {
	for _, p := range []string{"discovery", "manipulation", "execution", "distribution"} {
		v := 0.0
		if p == active {
			v = 1.0
		}
		CurrentPhase.WithLabelValues(p).Set(v)
	}
}
