package main

import (
	"context"
	"errors"
	"time"

	"github.com/vyrodovalexey/signgw/internal/observability"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 30 * time.Second

// shutdown stops the listeners, drains metering and closes collaborators.
func (a *application) shutdown(ctx context.Context) error {
	var errs []error

	if a.gatewayServer != nil {
		if err := a.gatewayServer.Stop(ctx); err != nil {
			a.logger.Error("failed to stop gateway listener gracefully", observability.Error(err))
			errs = append(errs, err)
		}
	}
	if a.adminServer != nil {
		if err := a.adminServer.Stop(ctx); err != nil {
			a.logger.Error("failed to stop admin listener gracefully", observability.Error(err))
			errs = append(errs, err)
		}
	}

	a.closeCollaborators(ctx)

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown tracer", observability.Error(err))
			errs = append(errs, err)
		}
	}

	a.logger.Info("gateway stopped")
	return errors.Join(errs...)
}

// closeCollaborators drains the dispatcher before closing the counter it
// writes to, then closes the lookup clients.
func (a *application) closeCollaborators(ctx context.Context) {
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil {
			a.logger.Warn("metering queue not fully drained", observability.Error(err))
		}
		a.dispatcher = nil
	}

	closers := []struct {
		name   string
		closer interface{ Close() error }
	}{
		{"counter", a.counter},
		{"registry", a.registry},
		{"credentials", a.store},
	}
	for _, c := range closers {
		if c.closer == nil {
			continue
		}
		if err := c.closer.Close(); err != nil {
			a.logger.Error("failed to close collaborator",
				observability.String("collaborator", c.name),
				observability.Error(err),
			)
		}
	}
	a.counter, a.registry, a.store = nil, nil, nil
}
