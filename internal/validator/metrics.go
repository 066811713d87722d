package validator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/parity/internal/classify"
)

// Metrics records validator activity into a caller-owned registry.
type Metrics struct {
	seeds        *prometheus.CounterVec
	commands     prometheus.Counter
	differences  *prometheus.CounterVec
	seedDuration prometheus.Histogram
	logicParity  prometheus.Gauge
}

// NewMetrics registers the validator's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		seeds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parity_seeds_total",
			Help: "Seeds run, by mode and outcome",
		}, []string{"mode", "outcome"}),
		commands: f.NewCounter(prometheus.CounterOpts{
			Name: "parity_commands_total",
			Help: "Commands compared across all seeds",
		}),
		differences: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parity_differences_total",
			Help: "Differences found, by classification",
		}, []string{"classification"}),
		seedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "parity_seed_duration_seconds",
			Help:    "Wall time to run and compare one seed",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),
		logicParity: f.NewGauge(prometheus.GaugeOpts{
			Name: "parity_logic_parity_percentage",
			Help: "Logic parity of the most recent multi-seed or extended run",
		}),
	}
}

func (m *Metrics) observeSeed(r *SeedResult) {
	if m == nil {
		return
	}
	outcome := "ok"
	if r.Failed() {
		outcome = "failed"
	}
	m.seeds.WithLabelValues(string(r.Mode), outcome).Inc()
	m.commands.Add(float64(r.TotalCommands))
	m.differences.WithLabelValues(string(classify.RNGDifference)).Add(float64(r.RNGDifferences))
	m.differences.WithLabelValues(string(classify.StateDivergence)).Add(float64(r.StateDivergences))
	m.differences.WithLabelValues(string(classify.LogicDifference)).Add(float64(r.LogicDifferences))
	m.seedDuration.Observe(r.Duration.Seconds())
}

func (m *Metrics) observeRun(r *ParityResults) {
	if m == nil {
		return
	}
	m.logicParity.Set(r.OverallParityPercentage)
}
