package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/signgw/internal/circuitbreaker"
	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/observability"
	"github.com/vyrodovalexey/signgw/internal/storage/sqlite"
)

// Deps carries shared infrastructure for NewRegistry.
type Deps struct {
	Logger         observability.Logger
	BreakerMetrics *circuitbreaker.Metrics
}

// FromStatic converts inline config entries to descriptors.
func FromStatic(entries []config.StaticInterface) []InterfaceDescriptor {
	out := make([]InterfaceDescriptor, 0, len(entries))
	for _, e := range entries {
		out = append(out, InterfaceDescriptor{
			ID:      e.ID,
			Path:    e.URL,
			Method:  e.Method,
			OwnerID: e.OwnerID,
			Enabled: !e.Disabled,
		})
	}
	return out
}

// NewRegistry builds the registry selected by cfg. prefix is prepended to
// request paths to form the lookup key. Static entries also seed the SQLite
// table when that backend is selected.
func NewRegistry(ctx context.Context, cfg *config.RegistryConfig, prefix string, deps Deps) (Registry, error) {
	if cfg == nil {
		return nil, errors.New("registry config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.TypeMemory, "":
		return NewMemoryRegistry(prefix, FromStatic(cfg.Static)...), nil

	case config.TypeSQLite:
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, errors.New("sqlite registry requires a database path")
		}
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open registry database: %w", err)
		}
		r := NewSQLiteRegistry(store, prefix, true)
		for _, d := range FromStatic(cfg.Static) {
			if err := r.Register(ctx, d); err != nil {
				_ = r.Close()
				return nil, err
			}
		}
		logger.Info("interface registry ready",
			observability.String("type", cfg.Type),
			observability.String("path", store.Path()),
		)
		return r, nil

	case config.TypeHTTP:
		if cfg.HTTP == nil {
			return nil, errors.New("http registry requires a base URL")
		}
		timeout := cfg.Timeout.Duration()
		if timeout <= 0 {
			timeout = config.DefaultCollaboratorTimeout
		}
		breaker := circuitbreaker.New("interface-registry",
			cfg.HTTP.Breaker.Threshold,
			breakerTimeout(cfg.HTTP.Breaker.Timeout),
			circuitbreaker.WithLogger(logger),
			circuitbreaker.WithMetrics(deps.BreakerMetrics),
			circuitbreaker.WithIsSuccessful(isNotFound),
		)
		r, err := NewHTTPRegistry(cfg.HTTP.BaseURL, prefix,
			WithHTTPClient(&http.Client{Timeout: timeout}),
			WithBreaker(breaker),
			WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unsupported registry type %q", cfg.Type)
	}
}

// breakerTimeout returns the configured breaker timeout or the default.
func breakerTimeout(d config.Duration) time.Duration {
	if d <= 0 {
		return config.DefaultBreakerTimeout
	}
	return d.Duration()
}
