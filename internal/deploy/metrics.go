package deploy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records run progress. A nil *Metrics records nothing.
type Metrics struct {
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	gasFallbacks prometheus.Counter
	lastSuccess  prometheus.Gauge
}

// NewMetrics registers the deployer metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nftdeploy_steps_total",
				Help: "Total number of plan steps executed",
			},
			[]string{"kind", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nftdeploy_step_duration_seconds",
				Help:    "Time from submission to confirmation of a plan step",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"kind"},
		),
		gasFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "nftdeploy_gas_price_fallback_total",
				Help: "Number of times the default gas price replaced the network price",
			},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nftdeploy_last_run_success",
				Help: "1 if the last run completed every step, 0 otherwise",
			},
		),
	}
}

func (m *Metrics) observeStep(kind StepKind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(string(kind), status).Inc()
	m.stepDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) gasFallback() {
	if m == nil {
		return
	}
	m.gasFallbacks.Inc()
}

func (m *Metrics) runFinished(success bool) {
	if m == nil {
		return
	}
	if success {
		m.lastSuccess.Set(1)
		return
	}
	m.lastSuccess.Set(0)
}
