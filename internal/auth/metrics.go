package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for access decisions.
type Metrics struct {
	decisions *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics creates gate metrics registered on registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "access",
				Name:      "decisions_total",
				Help:      "Total number of access decisions by outcome and deny reason",
			},
			[]string{"outcome", "reason"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "access",
				Name:      "evaluation_seconds",
				Help:      "Access decision latency in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
		),
	}

	for _, c := range []prometheus.Collector{m.decisions, m.duration} {
		_ = registerer.Register(c)
	}
	return m
}

func (m *Metrics) record(d Decision, elapsed time.Duration) {
	m.decisions.WithLabelValues(d.Outcome(), d.Reason.String()).Inc()
	m.duration.Observe(elapsed.Seconds())
}
