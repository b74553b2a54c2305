package auth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/signgw/internal/auth/replay"
	"github.com/vyrodovalexey/signgw/internal/auth/signature"
	"github.com/vyrodovalexey/signgw/internal/credentials"
	"github.com/vyrodovalexey/signgw/internal/observability"
)

// DefaultCredentialTimeout bounds a credential lookup.
const DefaultCredentialTimeout = 2 * time.Second

var tracer = otel.Tracer("signgw/auth")

// Gate combines the allow-list, credential store, replay guard and
// signature engine into one decision. A Gate is immutable and safe for
// concurrent use.
type Gate struct {
	allowList map[string]struct{}
	store     credentials.Store
	guard     *replay.Guard
	engine    *signature.Engine
	timeout   time.Duration
	logger    observability.Logger
	metrics   *Metrics
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithCredentialTimeout bounds each credential lookup.
func WithCredentialTimeout(timeout time.Duration) GateOption {
	return func(g *Gate) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// NewGate creates a gate. An empty allowList admits no address.
func NewGate(
	allowList []string,
	store credentials.Store,
	guard *replay.Guard,
	engine *signature.Engine,
	opts ...GateOption,
) *Gate {
	g := &Gate{
		allowList: make(map[string]struct{}, len(allowList)),
		store:     store,
		guard:     guard,
		engine:    engine,
		timeout:   DefaultCredentialTimeout,
		logger:    observability.NopLogger(),
	}
	for _, ip := range allowList {
		g.allowList[ip] = struct{}{}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IPAllowed reports whether ip is in the allow-list. Matching is exact.
func (g *Gate) IPAllowed(ip string) bool {
	_, ok := g.allowList[ip]
	return ok
}

// Evaluate runs the checks in order and returns the first failure, or an
// Allow decision carrying the resolved credential.
func (g *Gate) Evaluate(ctx context.Context, req *SignedRequest) Decision {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "auth.evaluate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("auth.access_key", req.AccessKey),
			attribute.String("client.address", req.SourceIP),
		),
	)
	defer span.End()

	d := g.evaluate(ctx, req)

	span.SetAttributes(
		attribute.String("auth.outcome", d.Outcome()),
		attribute.String("auth.reason", d.Reason.String()),
	)
	if g.metrics != nil {
		g.metrics.record(d, time.Since(start))
	}

	logger := g.logger.WithContext(ctx)
	if d.Allowed {
		logger.Debug("access allowed",
			observability.Object("credential", d.Credential),
			observability.String("source_ip", req.SourceIP),
		)
	} else {
		logger.Info("access denied",
			observability.String("reason", d.Reason.String()),
			observability.String("access_key", req.AccessKey),
			observability.String("source_ip", req.SourceIP),
		)
	}
	return d
}

func (g *Gate) evaluate(ctx context.Context, req *SignedRequest) Decision {
	if !g.IPAllowed(req.SourceIP) {
		return Deny(IPNotAllowed)
	}

	cred, err := g.resolve(ctx, req.AccessKey)
	if err != nil {
		if !errors.Is(err, credentials.ErrNotFound) {
			g.logger.WithContext(ctx).Warn("credential lookup failed",
				observability.String("access_key", req.AccessKey),
				observability.Error(err),
			)
		}
		return Deny(UnknownCredential)
	}

	if !g.guard.CheckNonce(req.Nonce) {
		return Deny(InvalidNonce)
	}
	if !g.guard.CheckTimestamp(req.Timestamp) {
		return Deny(StaleRequest)
	}
	if !g.engine.Verify(req.SigningFields(), cred.SecretKey, req.ClientSignature) {
		return Deny(BadSignature)
	}
	return Allow(cred)
}

func (g *Gate) resolve(ctx context.Context, accessKey string) (*credentials.ClientCredential, error) {
	if accessKey == "" {
		return nil, credentials.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cred, err := g.store.Resolve(ctx, accessKey)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, credentials.ErrNotFound
	}
	return cred, nil
}
