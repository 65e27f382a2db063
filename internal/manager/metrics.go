package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeReady       = "ready"
	outcomeError       = "error"
	outcomeRejected    = "rejected"
	outcomeOK          = "ok"
	outcomeUnavailable = "unavailable"
	outcomeInvalid     = "invalid"
)

type managerMetrics struct {
	loads            *prometheus.CounterVec
	loadDuration     prometheus.Histogram
	loadProgress     prometheus.Gauge
	generations      *prometheus.CounterVec
	generateDuration prometheus.Histogram
}

// newManagerMetrics registers the manager's collectors on reg. Registering
// two managers on the same registerer panics.
func newManagerMetrics(reg prometheus.Registerer) *managerMetrics {
	f := promauto.With(reg)
	return &managerMetrics{
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oncoqa",
			Subsystem: "manager",
			Name:      "loads_total",
			Help:      "Pipeline load attempts by outcome (ready, error, rejected)",
		}, []string{"outcome"}),
		loadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oncoqa",
			Subsystem: "manager",
			Name:      "load_duration_seconds",
			Help:      "Duration of pipeline loads in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		loadProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "oncoqa",
			Subsystem: "manager",
			Name:      "load_progress_percent",
			Help:      "Progress of the current pipeline load (0-100)",
		}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oncoqa",
			Subsystem: "manager",
			Name:      "generations_total",
			Help:      "GenerateResponse calls by outcome (ok, error, unavailable, invalid)",
		}, []string{"outcome"}),
		generateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "oncoqa",
			Subsystem: "manager",
			Name:      "generation_duration_seconds",
			Help:      "Duration of pipeline generate calls in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
