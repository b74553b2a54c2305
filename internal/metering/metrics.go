package metering

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Event results recorded by the dispatcher.
const (
	ResultRecorded = "recorded"
	ResultFailed   = "failed"
	ResultRejected = "rejected"
)

// Metrics holds Prometheus metrics for the dispatcher.
type Metrics struct {
	events     *prometheus.CounterVec
	dropped    prometheus.Counter
	queueDepth prometheus.Gauge
}

// NewMetrics creates metering metrics registered on registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "metering",
				Name:      "events_total",
				Help:      "Total number of processed invocation events by result",
			},
			[]string{"result"},
		),
		dropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "metering",
				Name:      "dropped_total",
				Help:      "Total number of invocation events dropped because the queue was full",
			},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "metering",
				Name:      "queue_depth",
				Help:      "Number of invocation events waiting to be processed",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.events, m.dropped, m.queueDepth} {
		_ = registerer.Register(c)
	}
	return m
}
