package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/signgw/internal/observability"
	"github.com/vyrodovalexey/signgw/internal/retry"
)

// Redis hash fields of a stored credential.
const (
	FieldSecretKey = "secret_key"
	FieldUserID    = "user_id"
)

// RedisStore reads credentials from Redis hashes at <prefix><accessKey>.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    observability.Logger
	retry     *retry.Config
}

// NewRedisStore creates a store over an existing client.
func NewRedisStore(client *redis.Client, keyPrefix string, logger observability.Logger) *RedisStore {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger.With(observability.String("component", "credentials.redis")),
		retry:     &retry.Config{MaxRetries: 2},
	}
}

// Key returns the Redis key holding the credential for accessKey.
func (s *RedisStore) Key(accessKey string) string {
	return s.keyPrefix + accessKey
}

// Resolve implements Store.
func (s *RedisStore) Resolve(ctx context.Context, accessKey string) (*ClientCredential, error) {
	if accessKey == "" {
		return nil, fmt.Errorf("empty access key: %w", ErrNotFound)
	}

	var fields map[string]string
	err := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		var err error
		fields, err = s.client.HGetAll(ctx, s.Key(accessKey)).Result()
		return err
	}, retry.WithShouldRetry(retry.IsTransient))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
		}
		return nil, fmt.Errorf("redis credential lookup: %w", err)
	}

	secret, ok := fields[FieldSecretKey]
	if !ok || secret == "" {
		return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
	}

	return &ClientCredential{
		AccessKey: accessKey,
		SecretKey: secret,
		UserID:    fields[FieldUserID],
	}, nil
}

// Put stores a credential. Used for seeding and tests.
func (s *RedisStore) Put(ctx context.Context, cred ClientCredential) error {
	return s.client.HSet(ctx, s.Key(cred.AccessKey),
		FieldSecretKey, cred.SecretKey,
		FieldUserID, cred.UserID,
	).Err()
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
