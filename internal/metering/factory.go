package metering

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/observability"
	storeredis "github.com/vyrodovalexey/signgw/internal/storage/redis"
	"github.com/vyrodovalexey/signgw/internal/storage/sqlite"
)

// RedisKeySuffix is appended to the configured key prefix for count hashes.
const RedisKeySuffix = "invocations:"

// NewCounter builds the counter selected by cfg.Type.
func NewCounter(ctx context.Context, cfg *config.CounterConfig, logger observability.Logger) (Counter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("counter configuration is nil")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.TypeMemory, "":
		logger.Info("invocation counter initialized", observability.String("type", config.TypeMemory))
		return NewMemoryCounter(), nil

	case config.TypeRedis:
		client, err := storeredis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("invocation counter: %w", err)
		}
		prefix := cfg.Redis.KeyPrefix + RedisKeySuffix
		logger.Info("invocation counter initialized",
			observability.String("type", config.TypeRedis),
			observability.String("key_prefix", prefix),
		)
		return NewRedisCounter(client, prefix), nil

	case config.TypeSQLite:
		if cfg.SQLite == nil || cfg.SQLite.Path == "" {
			return nil, fmt.Errorf("invocation counter: sqlite path is required")
		}
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("invocation counter: %w", err)
		}
		logger.Info("invocation counter initialized",
			observability.String("type", config.TypeSQLite),
			observability.String("path", store.Path()),
		)
		return NewSQLiteCounter(store, true), nil

	default:
		return nil, fmt.Errorf("unsupported counter type %q", cfg.Type)
	}
}
