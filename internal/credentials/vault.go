package credentials

import (
	"context"
	"fmt"
	"path"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/signgw/internal/config"
	"github.com/vyrodovalexey/signgw/internal/observability"
)

// VaultStore reads credentials from a KV v2 engine at
// <mount>/data/<pathPrefix>/<accessKey>.
type VaultStore struct {
	api        *vaultapi.Client
	mount      string
	pathPrefix string
	logger     observability.Logger
}

// NewVaultStore creates a Vault-backed store. An empty token falls back to
// the VAULT_TOKEN environment variable read by the Vault client.
func NewVaultStore(cfg *config.VaultConfig, logger observability.Logger) (*VaultStore, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("vault address is required")
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	mount := strings.Trim(cfg.Mount, "/")
	if mount == "" {
		mount = config.DefaultVaultMount
	}

	return &VaultStore{
		api:        client,
		mount:      mount,
		pathPrefix: strings.Trim(cfg.PathPrefix, "/"),
		logger:     logger.With(observability.String("component", "credentials.vault")),
	}, nil
}

// SecretPath returns the logical read path for accessKey.
func (s *VaultStore) SecretPath(accessKey string) string {
	return path.Join(s.mount, "data", s.pathPrefix, accessKey)
}

// Resolve implements Store.
func (s *VaultStore) Resolve(ctx context.Context, accessKey string) (*ClientCredential, error) {
	if accessKey == "" || strings.ContainsAny(accessKey, "/.") {
		return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
	}

	fullPath := s.SecretPath(accessKey)
	secret, err := s.api.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		return nil, fmt.Errorf("vault credential lookup: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
	}

	// KV v2 wraps the payload in "data"; a soft-deleted secret has data: null.
	dataValue, hasData := secret.Data["data"]
	if hasData && dataValue == nil {
		return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
	}
	data, ok := dataValue.(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	secretKey, _ := data[FieldSecretKey].(string)
	if secretKey == "" {
		return nil, fmt.Errorf("access key %q: %w", accessKey, ErrNotFound)
	}
	userID := stringify(data[FieldUserID])

	s.logger.Debug("credential read from vault",
		observability.String("path", fullPath),
	)

	return &ClientCredential{
		AccessKey: accessKey,
		SecretKey: secretKey,
		UserID:    userID,
	}, nil
}

// Ping implements Pinger using the Vault health endpoint.
func (s *VaultStore) Ping(ctx context.Context) error {
	health, err := s.api.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

// Close implements Store.
func (s *VaultStore) Close() error {
	return nil
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
