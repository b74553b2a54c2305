package metering

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/signgw/internal/circuitbreaker"
	"github.com/vyrodovalexey/signgw/internal/observability"
	"github.com/vyrodovalexey/signgw/internal/retry"
)

// Dispatcher defaults.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 1024
	DefaultTimeout   = 2 * time.Second
)

var tracer = otel.Tracer("signgw/metering")

// Dispatcher increments a Counter asynchronously from a bounded queue.
type Dispatcher struct {
	counter   Counter
	logger    observability.Logger
	metrics   *Metrics
	breaker   *circuitbreaker.Breaker
	retry     *retry.Config
	timeout   time.Duration
	workers   int
	queueSize int

	queue  chan InvocationEvent
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithBreaker guards counter calls with b.
func WithBreaker(b *circuitbreaker.Breaker) DispatcherOption {
	return func(d *Dispatcher) {
		d.breaker = b
	}
}

// WithRetry sets the retry policy for counter calls. Increments are not
// idempotent, so only failures that never reached the counter are retried.
func WithRetry(cfg *retry.Config) DispatcherOption {
	return func(d *Dispatcher) {
		d.retry = cfg
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithTimeout bounds each counter call, retries included.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher over counter and starts its workers.
func NewDispatcher(counter Counter, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		counter:   counter,
		logger:    observability.NopLogger(),
		retry:     retry.DefaultConfig(),
		timeout:   DefaultTimeout,
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(observability.String("component", "metering"))

	d.queue = make(chan InvocationEvent, d.queueSize)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(d.workers)
	for range d.workers {
		go d.worker()
	}
	return d
}

// Submit enqueues ev without blocking. A full queue drops the event and
// returns ErrQueueFull.
func (d *Dispatcher) Submit(ev InvocationEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- ev:
		if d.metrics != nil {
			d.metrics.queueDepth.Set(float64(len(d.queue)))
		}
		return nil
	default:
		if d.metrics != nil {
			d.metrics.dropped.Inc()
		}
		d.logger.Warn("metering queue full, dropping invocation event",
			observability.String("request_id", ev.RequestID),
			observability.String("user_id", ev.UserID),
			observability.String("interface_id", ev.InterfaceID),
		)
		return ErrQueueFull
	}
}

// Close stops accepting events and waits for queued events to be processed.
// When ctx expires first, in-flight calls are cancelled and ctx's error is
// returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for ev := range d.queue {
		if d.metrics != nil {
			d.metrics.queueDepth.Set(float64(len(d.queue)))
		}
		d.process(ev)
	}
}

func (d *Dispatcher) process(ev InvocationEvent) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "metering.increment",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("metering.user_id", ev.UserID),
			attribute.String("metering.interface_id", ev.InterfaceID),
		),
	)
	defer span.End()

	err := d.increment(ctx, ev)

	result := ResultRecorded
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		result = ResultRejected
	case err != nil:
		result = ResultFailed
	}
	if d.metrics != nil {
		d.metrics.events.WithLabelValues(result).Inc()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("failed to record invocation",
			observability.String("request_id", ev.RequestID),
			observability.String("user_id", ev.UserID),
			observability.String("interface_id", ev.InterfaceID),
			observability.String("result", result),
			observability.Error(err),
		)
		return
	}

	d.logger.Debug("invocation recorded",
		observability.String("request_id", ev.RequestID),
		observability.String("user_id", ev.UserID),
		observability.String("interface_id", ev.InterfaceID),
	)
}

func (d *Dispatcher) increment(ctx context.Context, ev InvocationEvent) error {
	call := func(ctx context.Context) error {
		return retry.Do(ctx, d.retry, func(ctx context.Context) error {
			return d.counter.Increment(ctx, ev.UserID, ev.InterfaceID)
		}, retry.WithShouldRetry(retry.NeverSent), retry.WithOnRetry(func(attempt int, err error, backoff time.Duration) {
			d.logger.Debug("retrying invocation increment",
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		}))
	}

	if d.breaker == nil {
		return call(ctx)
	}
	return d.breaker.Execute(ctx, call)
}
