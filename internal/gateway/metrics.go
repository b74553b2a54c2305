package gateway

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Results of handing an event to metering.
const (
	SubmitAccepted = "accepted"
	SubmitDropped  = "dropped"
)

// Metrics holds Prometheus metrics for the filter.
type Metrics struct {
	requests *prometheus.CounterVec
	events   *prometheus.CounterVec
}

// NewMetrics creates filter metrics registered on registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of filtered requests by outcome and status",
			},
			[]string{"state", "status"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocation_events_submitted_total",
				Help:      "Total number of invocation events handed to metering by result",
			},
			[]string{"result"},
		),
	}
	for _, c := range []prometheus.Collector{m.requests, m.events} {
		_ = registerer.Register(c)
	}
	return m
}

func (m *Metrics) recordRequest(outcome string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
}

func (m *Metrics) recordSubmit(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}
