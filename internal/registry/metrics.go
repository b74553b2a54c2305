package registry

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Resolution results recorded by Instrument.
const (
	ResultFound    = "found"
	ResultDisabled = "disabled"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

var tracer = otel.Tracer("signgw/registry")

// Metrics counts interface resolutions by result.
type Metrics struct {
	resolutions *prometheus.CounterVec
}

// NewMetrics creates registry metrics registered on registerer.
func NewMetrics(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "gateway"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interface_resolutions_total",
				Help:      "Total number of interface resolutions by result",
			},
			[]string{"result"},
		),
	}
	_ = registerer.Register(m.resolutions)
	return m
}

// ResultOf classifies a Resolve outcome.
func ResultOf(d *InterfaceDescriptor, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return ResultNotFound
	case err != nil:
		return ResultError
	case d == nil:
		return ResultNotFound
	case !d.Enabled:
		return ResultDisabled
	default:
		return ResultFound
	}
}

type instrumented struct {
	next    Registry
	metrics *Metrics
}

// Instrument wraps r so every lookup is counted and traced as
// "registry.resolve". A nil m only traces.
func Instrument(r Registry, m *Metrics) Registry {
	return &instrumented{next: r, metrics: m}
}

func (i *instrumented) Resolve(ctx context.Context, path, method string) (*InterfaceDescriptor, error) {
	ctx, span := tracer.Start(ctx, "registry.resolve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("url.path", path),
			attribute.String("http.request.method", method),
		),
	)
	defer span.End()

	d, err := i.next.Resolve(ctx, path, method)
	result := ResultOf(d, err)

	span.SetAttributes(attribute.String("registry.result", result))
	if result == ResultError {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if i.metrics != nil {
		i.metrics.resolutions.WithLabelValues(result).Inc()
	}
	return d, err
}

// Ping forwards to the wrapped registry when it supports pinging.
func (i *instrumented) Ping(ctx context.Context) error {
	if p, ok := i.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
