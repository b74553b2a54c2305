package intercept

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts observed response chunks and bytes.
type Metrics struct {
	chunks prometheus.Counter
	bytes  prometheus.Counter
}

// NewMetrics creates interceptor metrics registered on registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intercept",
			Name:      "chunks_total",
			Help:      "Total number of observed response chunks",
		}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "intercept",
			Name:      "bytes_total",
			Help:      "Total number of observed response bytes",
		}),
	}
	_ = registerer.Register(m.chunks)
	_ = registerer.Register(m.bytes)
	return m
}
