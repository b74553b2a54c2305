package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/signgw/internal/auth"
	"github.com/vyrodovalexey/signgw/internal/intercept"
	"github.com/vyrodovalexey/signgw/internal/metering"
	"github.com/vyrodovalexey/signgw/internal/middleware"
	"github.com/vyrodovalexey/signgw/internal/observability"
	"github.com/vyrodovalexey/signgw/internal/registry"
)

// DefaultLookupTimeout bounds an interface lookup.
const DefaultLookupTimeout = 2 * time.Second

// Authorizer decides whether a signed request may pass.
type Authorizer interface {
	Evaluate(ctx context.Context, req *auth.SignedRequest) auth.Decision
}

// Resolver looks up the interface a request calls.
type Resolver interface {
	Resolve(ctx context.Context, path, method string) (*registry.InterfaceDescriptor, error)
}

// Submitter accepts invocation events without blocking.
type Submitter interface {
	Submit(ev metering.InvocationEvent) error
}

// Forwarder proxies a request to the backend. modifyResponse runs on the
// backend response before anything is written to w.
type Forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, modifyResponse func(*http.Response) error)
}

// Filter authenticates, forwards and meters requests. It is safe for
// concurrent use; all per-request state lives on the request goroutine.
type Filter struct {
	gate          Authorizer
	resolver      Resolver
	forwarder     Forwarder
	submitter     Submitter
	interceptor   *intercept.Interceptor
	ips           auth.IPExtractor
	logger        observability.Logger
	metrics       *Metrics
	lookupTimeout time.Duration
	now           func() time.Time
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(f *Filter) {
		f.metrics = m
	}
}

// WithInterceptor sets the response interceptor.
func WithInterceptor(i *intercept.Interceptor) Option {
	return func(f *Filter) {
		if i != nil {
			f.interceptor = i
		}
	}
}

// WithIPExtractor sets how the source address of a request is found.
func WithIPExtractor(ips auth.IPExtractor) Option {
	return func(f *Filter) {
		f.ips = ips
	}
}

// WithLookupTimeout bounds each interface lookup.
func WithLookupTimeout(timeout time.Duration) Option {
	return func(f *Filter) {
		if timeout > 0 {
			f.lookupTimeout = timeout
		}
	}
}

// WithClock sets the clock used to stamp invocation events.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFilter creates a Filter. A nil resolver degrades every request and a
// nil submitter disables metering.
func NewFilter(
	gate Authorizer,
	resolver Resolver,
	forwarder Forwarder,
	submitter Submitter,
	opts ...Option,
) (*Filter, error) {
	if gate == nil {
		return nil, ErrNilAuthorizer
	}
	if forwarder == nil {
		return nil, ErrNilForwarder
	}

	f := &Filter{
		gate:          gate,
		resolver:      resolver,
		forwarder:     forwarder,
		submitter:     submitter,
		interceptor:   intercept.New(),
		ips:           middleware.NewClientIPExtractor(nil),
		logger:        observability.NopLogger(),
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(observability.String("component", "filter"))
	return f, nil
}

// flow is the per-request state machine.
type flow struct {
	logger   observability.Logger
	state    State
	degraded bool
	tap      *intercept.BodyTap
}

func (fl *flow) to(next State) {
	if fl.state == next {
		return
	}
	fl.logger.Debug("filter state transition",
		observability.String("from", fl.state.String()),
		observability.String("to", next.String()),
		observability.Bool("degraded", fl.degraded),
	)
	fl.state = next
}

func (fl *flow) outcome() string {
	if fl.degraded {
		return OutcomeDegraded
	}
	return OutcomeDone
}

// ServeHTTP implements http.Handler.
func (f *Filter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fl := &flow{logger: f.logger.WithContext(ctx), state: StateStart}
	sw := &statusWriter{ResponseWriter: w}
	defer f.recoverFault(fl, sw)

	req := auth.ExtractSignedRequest(r, f.ips)
	fl.logger.Info("request received",
		observability.String("path", r.URL.Path),
		observability.String("method", r.Method),
		observability.String("query", r.URL.RawQuery),
		observability.String("source_ip", req.SourceIP),
	)

	fl.to(StateGating)
	decision := f.gate.Evaluate(ctx, req)
	if !decision.Allowed {
		fl.to(StateDenied)
		sw.WriteHeader(http.StatusForbidden)
		f.metrics.recordRequest(OutcomeDenied, http.StatusForbidden)
		return
	}

	fl.to(StateResolving)
	iface := f.resolve(ctx, fl, r)

	fl.to(StateForwarding)
	f.forward(ctx, fl, sw, r, decision, iface)
}

// recoverFault answers a panic with an empty 500 when nothing has been
// written yet. Aborted streams are passed on as http.ErrAbortHandler.
func (f *Filter) recoverFault(fl *flow, sw *statusWriter) {
	p := recover()
	if p == nil {
		return
	}
	if fl.tap != nil {
		fl.tap.Finish(false)
	}

	if p == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
		fl.to(StateDone)
		f.metrics.recordRequest(OutcomeAborted, sw.status)
		panic(p)
	}

	fl.logger.Error("filter fault",
		observability.Any("panic", p),
		observability.String("state", fl.state.String()),
	)
	fl.to(StateDone)
	f.metrics.recordRequest(OutcomeFailed, http.StatusInternalServerError)
	if sw.written {
		panic(http.ErrAbortHandler)
	}
	sw.WriteHeader(http.StatusInternalServerError)
}

// resolve returns the enabled interface called by r, or nil with the flow
// marked degraded.
func (f *Filter) resolve(ctx context.Context, fl *flow, r *http.Request) *registry.InterfaceDescriptor {
	if f.resolver == nil {
		fl.degraded = true
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, f.lookupTimeout)
	defer cancel()

	iface, err := f.resolver.Resolve(lookupCtx, r.URL.Path, r.Method)
	switch {
	case errors.Is(err, registry.ErrNotFound), err == nil && iface == nil:
		fl.logger.Info("interface not found, forwarding without metering",
			observability.String("path", r.URL.Path),
			observability.String("method", r.Method),
		)
	case err != nil:
		fl.logger.Warn("interface lookup failed, forwarding without metering",
			observability.String("path", r.URL.Path),
			observability.String("method", r.Method),
			observability.Error(err),
		)
	case !iface.Enabled:
		fl.logger.Info("interface disabled, forwarding without metering",
			observability.String("interface_id", iface.ID),
			observability.String("path", r.URL.Path),
			observability.String("method", r.Method),
		)
	default:
		return iface
	}

	fl.degraded = true
	return nil
}

func (f *Filter) forward(
	ctx context.Context,
	fl *flow,
	sw *statusWriter,
	r *http.Request,
	decision auth.Decision,
	iface *registry.InterfaceDescriptor,
) {
	modify := func(resp *http.Response) error {
		fl.to(StateCompleting)
		fl.tap = f.decorate(ctx, fl, resp)
		return nil
	}

	f.forwarder.Forward(sw, r, modify)
	fl.to(StateCompleting)

	delivered := ctx.Err() == nil && sw.writeErr == nil
	status := sw.status
	if !sw.written && delivered {
		status = http.StatusOK
	}

	outcome := fl.outcome()
	if !delivered {
		outcome = OutcomeAborted
	}

	tap := fl.tap
	fl.tap = nil
	if tap != nil && tap.Finish(delivered) && status == http.StatusOK && !fl.degraded {
		f.submit(ctx, fl, decision, iface)
	}

	f.metrics.recordRequest(outcome, status)
	fl.to(StateDone)
}

// decorate inspects the backend response and wraps a meterable body. Any
// panic leaves resp as it was.
func (f *Filter) decorate(ctx context.Context, fl *flow, resp *http.Response) (tap *intercept.BodyTap) {
	defer func() {
		if p := recover(); p != nil {
			fl.logger.Error("response decoration failed, passing response through",
				observability.Any("panic", p),
			)
			tap = nil
		}
	}()

	if resp.StatusCode >= http.StatusInternalServerError {
		fl.logger.Error("backend returned error response",
			observability.Int("status", resp.StatusCode),
			observability.String("path", resp.Request.URL.Path),
		)
	}
	if resp.StatusCode != http.StatusOK || fl.degraded || resp.Body == nil {
		return nil
	}

	t := f.interceptor.WrapBody(ctx, resp.StatusCode, resp.Body)
	resp.Body = t
	return t
}

// submit hands one invocation event to metering. Failures are logged and
// dropped.
func (f *Filter) submit(
	ctx context.Context,
	fl *flow,
	decision auth.Decision,
	iface *registry.InterfaceDescriptor,
) {
	if f.submitter == nil || decision.Credential == nil || iface == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			fl.logger.Error("metering submit failed", observability.Any("panic", p))
			f.metrics.recordSubmit(SubmitDropped)
		}
	}()

	requestID := observability.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	err := f.submitter.Submit(metering.InvocationEvent{
		UserID:      decision.Credential.UserID,
		InterfaceID: iface.ID,
		RequestID:   requestID,
		OccurredAt:  f.now(),
	})
	if err != nil {
		fl.logger.Warn("invocation event not submitted",
			observability.String("interface_id", iface.ID),
			observability.Error(err),
		)
		f.metrics.recordSubmit(SubmitDropped)
		return
	}
	f.metrics.recordSubmit(SubmitAccepted)
}
