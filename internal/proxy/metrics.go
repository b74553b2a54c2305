package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for backend calls.
type Metrics struct {
	errorsTotal     *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

// NewMetrics creates forwarder metrics registered on registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "errors_total",
				Help:      "Total number of failed backend calls by error type",
			},
			[]string{"error_type"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "backend_duration_seconds",
				Help:      "Duration of proxied backend requests in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
	}

	for _, c := range []prometheus.Collector{m.errorsTotal, m.backendDuration} {
		_ = registerer.Register(c)
	}
	return m
}
