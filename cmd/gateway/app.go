package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/signgw/internal/auth"
	"github.com/vyrodovalexey/signgw/internal/auth/replay"
	"github.com/vyrodovalexey/signgw/internal/auth/signature"
	"github.com/vyrodovalexey/signgw/internal/circuitbreaker"
	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/credentials"
	"github.com/vyrodovalexey/signgw/internal/gateway"
	"github.com/vyrodovalexey/signgw/internal/health"
	"github.com/vyrodovalexey/signgw/internal/intercept"
	"github.com/vyrodovalexey/signgw/internal/metering"
	"github.com/vyrodovalexey/signgw/internal/middleware"
	"github.com/vyrodovalexey/signgw/internal/observability"
	"github.com/vyrodovalexey/signgw/internal/proxy"
	"github.com/vyrodovalexey/signgw/internal/registry"
	"github.com/vyrodovalexey/signgw/internal/retry"
	"github.com/vyrodovalexey/signgw/internal/server"
)

// application holds all application components.
type application struct {
	config *config.GatewayConfig
	logger observability.Logger

	metrics *observability.Metrics
	tracer  *observability.Tracer

	store      credentials.Store
	registry   registry.Registry
	counter    metering.Counter
	dispatcher *metering.Dispatcher

	handler http.Handler
	health  *health.Handler

	gatewayServer *server.Server
	adminServer   *server.Server
}

// newApplication wires every component from cfg. On error, whatever was
// already opened is closed.
func newApplication(ctx context.Context, cfg *config.GatewayConfig, logger observability.Logger) (_ *application, err error) {
	app := &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.closeCollaborators(context.Background())
		}
	}()

	app.metrics = observability.NewMetrics(observability.DefaultNamespace)
	app.metrics.SetBuildInfo(version, gitCommit, buildTime)
	reg := app.metrics.Registry()
	ns := observability.DefaultNamespace

	app.tracer, err = observability.NewTracer(observability.TracerConfig{
		ServiceName:    cfg.Observability.Tracing.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Observability.Tracing.OTLPEndpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	app.store, err = credentials.NewStore(ctx, &cfg.Collaborators.Credentials, logger)
	if err != nil {
		return nil, err
	}

	breakerMetrics := circuitbreaker.NewMetrics(ns, reg)
	resolver, err := registry.NewRegistry(ctx, &cfg.Collaborators.Registry, cfg.LookupPrefix(), registry.Deps{
		Logger:         logger,
		BreakerMetrics: breakerMetrics,
	})
	if err != nil {
		return nil, err
	}
	app.registry = registry.Instrument(resolver, registry.NewMetrics(ns, reg))

	app.counter, err = metering.NewCounter(ctx, &cfg.Collaborators.Counter, logger)
	if err != nil {
		return nil, err
	}
	app.dispatcher = metering.NewDispatcher(app.counter,
		metering.WithLogger(logger),
		metering.WithMetrics(metering.NewMetrics(ns, reg)),
		metering.WithBreaker(circuitbreaker.New("invocation-counter",
			cfg.Metering.Breaker.Threshold,
			cfg.Metering.Breaker.Timeout.Duration(),
			circuitbreaker.WithLogger(logger),
			circuitbreaker.WithMetrics(breakerMetrics),
		)),
		metering.WithRetry(&retry.Config{MaxRetries: cfg.Metering.MaxRetries}),
		metering.WithWorkers(cfg.Metering.Workers),
		metering.WithQueueSize(cfg.Metering.QueueSize),
		metering.WithTimeout(cfg.Collaborators.Counter.Timeout.Duration()),
	)

	app.handler, err = app.buildHandler(ns)
	if err != nil {
		return nil, err
	}

	app.health = health.NewHandler(version,
		health.WithLogger(logger),
		health.WithMetrics(health.NewMetrics(ns, reg)),
	)
	collab := cfg.Collaborators
	app.health.AddCheck(
		collaboratorCheck("credentials", app.store, collab.Credentials.Timeout.Duration()),
		collaboratorCheck("registry", app.registry, collab.Registry.Timeout.Duration()),
		collaboratorCheck("counter", app.counter, collab.Counter.Timeout.Duration()),
	)

	app.gatewayServer = server.New("gateway", cfg.Listen,
		server.NewGatewayEngine(app.handler), server.WithLogger(logger))
	app.adminServer = server.New("admin", cfg.Admin.Listen,
		server.NewAdminEngine(cfg.Admin.MetricsPath, app.metrics.Handler(), app.health), server.WithLogger(logger))

	return app, nil
}

// buildHandler assembles the request path: recovery, request id, access
// log, tracing and metrics in front of the signing filter and forwarder.
func (a *application) buildHandler(ns string) (http.Handler, error) {
	cfg := a.config
	reg := a.metrics.Registry()

	engine, err := signature.NewEngine(cfg.Security.Signature.Algorithm)
	if err != nil {
		return nil, err
	}
	guard := replay.NewGuard(
		cfg.Security.NonceCeiling,
		cfg.Security.FreshnessWindow.Duration(),
		cfg.Security.ClockSkewDuration(),
	)
	gate := auth.NewGate(cfg.Security.IPAllowList, a.store, guard, engine,
		auth.WithCredentialTimeout(cfg.Collaborators.Credentials.Timeout.Duration()),
		auth.WithLogger(a.logger),
		auth.WithMetrics(auth.NewMetrics(ns, reg)),
	)

	fwd, err := proxy.NewForwarder(cfg.Backend.Target,
		proxy.WithLogger(a.logger),
		proxy.WithMetrics(proxy.NewMetrics(ns, reg)),
		proxy.WithFlushInterval(cfg.Backend.FlushInterval.Duration()),
		proxy.WithTimeout(cfg.Backend.Timeout.Duration()),
	)
	if err != nil {
		return nil, err
	}

	ips := middleware.NewClientIPExtractor(cfg.Security.TrustedProxies)
	interceptor := intercept.New(
		intercept.WithLogger(a.logger),
		intercept.WithMetrics(intercept.NewMetrics(ns, reg)),
		intercept.WithMaxLogBytes(cfg.Intercept.MaxLogBytes),
	)

	filter, err := gateway.NewFilter(gate, a.registry, fwd, a.dispatcher,
		gateway.WithLogger(a.logger),
		gateway.WithMetrics(gateway.NewMetrics(ns, reg)),
		gateway.WithInterceptor(interceptor),
		gateway.WithIPExtractor(ips),
		gateway.WithLookupTimeout(cfg.Collaborators.Registry.Timeout.Duration()),
	)
	if err != nil {
		return nil, err
	}

	return middleware.Chain(filter,
		middleware.Recovery(a.logger, middleware.NewMetrics(ns, reg)),
		middleware.RequestID(),
		middleware.AccessLog(a.logger, ips),
		observability.TracingMiddleware(a.tracer),
		observability.MetricsMiddleware(a.metrics),
	), nil
}

// run serves both listeners until ctx is cancelled or a listener fails,
// then shuts down.
func (a *application) run(ctx context.Context) error {
	errCh := make(chan error, 2)
	for _, s := range []*server.Server{a.gatewayServer, a.adminServer} {
		go func(s *server.Server) {
			errCh <- s.Start(ctx)
		}(s)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("listener failed", observability.Error(runErr))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

// collaboratorCheck pings target within its lookup timeout. It is nil when
// target cannot be pinged.
func collaboratorCheck(name string, target any, timeout time.Duration) health.Check {
	return health.WithTimeout(health.PingCheck(name, target), timeout)
}
