// Package circuitbreaker wraps sony/gobreaker with logging, metrics and
// tracing for calls to remote collaborators.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/signgw/internal/observability"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker is open")

var tracer = otel.Tracer("signgw/circuitbreaker")

// Breaker guards calls to one collaborator.
type Breaker struct {
	cb           *gobreaker.CircuitBreaker
	logger       observability.Logger
	metrics      *Metrics
	isSuccessful func(error) bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(b *Breaker) {
		b.metrics = m
	}
}

// WithIsSuccessful marks errors accepted by fn as successes, for example a
// not-found answer from a healthy registry.
func WithIsSuccessful(fn func(error) bool) Option {
	return func(b *Breaker) {
		b.isSuccessful = fn
	}
}

// New creates a breaker that opens after threshold consecutive failures, or
// once at least threshold calls were made and half of them failed. It stays
// open for timeout before letting probe calls through.
func New(name string, threshold int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	thresholdU32 := safeIntToUint32(threshold)
	if thresholdU32 == 0 {
		thresholdU32 = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    timeout,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= thresholdU32 {
				return true
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= thresholdU32 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)

			if b.metrics != nil {
				b.metrics.recordTransition(name, from, to)
			}

			_, span := tracer.Start(context.Background(), "circuitbreaker.state_change",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			span.AddEvent("state_change", trace.WithAttributes(
				attribute.String("circuitbreaker.name", name),
				attribute.String("circuitbreaker.from", from.String()),
				attribute.String("circuitbreaker.to", to.String()),
			))
			span.End()
		},
	}
	if b.isSuccessful != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || b.isSuccessful(err)
		}
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	if b.metrics != nil {
		b.metrics.state.WithLabelValues(name).Set(float64(gobreaker.StateClosed))
	}
	return b
}

// Execute runs fn under the breaker. When the breaker is open fn is not
// called and the returned error wraps ErrOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		if b.metrics != nil {
			b.metrics.rejected.WithLabelValues(b.cb.Name()).Inc()
		}
		return errors.Join(ErrOpen, err)
	}
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.cb.Name()
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
