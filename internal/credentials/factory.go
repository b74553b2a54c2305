package credentials

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/observability"
	storeredis "github.com/vyrodovalexey/signgw/internal/storage/redis"
)

// NewStore builds the credential store selected by cfg.Type.
func NewStore(ctx context.Context, cfg *config.CredentialsConfig, logger observability.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("credentials configuration is nil")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.TypeMemory, "":
		creds := make([]ClientCredential, 0, len(cfg.Static))
		for _, c := range cfg.Static {
			creds = append(creds, ClientCredential{
				AccessKey: c.AccessKey,
				SecretKey: c.SecretKey,
				UserID:    c.UserID,
			})
		}
		logger.Info("credential store initialized",
			observability.String("type", config.TypeMemory),
			observability.Int("credentials", len(creds)),
		)
		return NewMemoryStore(creds...), nil

	case config.TypeRedis:
		client, err := storeredis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		logger.Info("credential store initialized",
			observability.String("type", config.TypeRedis),
			observability.String("key_prefix", cfg.Redis.KeyPrefix),
		)
		return NewRedisStore(client, cfg.Redis.KeyPrefix, logger), nil

	case config.TypeVault:
		store, err := NewVaultStore(cfg.Vault, logger)
		if err != nil {
			return nil, fmt.Errorf("credential store: %w", err)
		}
		logger.Info("credential store initialized",
			observability.String("type", config.TypeVault),
			observability.String("mount", store.mount),
		)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported credential store type %q", cfg.Type)
	}
}
