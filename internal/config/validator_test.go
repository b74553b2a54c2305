package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*GatewayConfig)
		wantPath string
	}{
		{
			name:     "bad backend scheme",
			mutate:   func(c *GatewayConfig) { c.Backend.Target = "ftp://host" },
			wantPath: "backend.target",
		},
		{
			name:     "backend without host",
			mutate:   func(c *GatewayConfig) { c.Backend.Target = "http://" },
			wantPath: "backend.target",
		},
		{
			name:     "allow-list entry not an IP",
			mutate:   func(c *GatewayConfig) { c.Security.IPAllowList = []string{"localhost"} },
			wantPath: "security.ip_allow_list[0]",
		},
		{
			name:     "bad trusted proxy",
			mutate:   func(c *GatewayConfig) { c.Security.TrustedProxies = []string{"10.0.0.0/33"} },
			wantPath: "security.trusted_proxies[0]",
		},
		{
			name:     "negative nonce ceiling",
			mutate:   func(c *GatewayConfig) { c.Security.NonceCeiling = -1 },
			wantPath: "security.nonce_ceiling",
		},
		{
			name:     "negative freshness window",
			mutate:   func(c *GatewayConfig) { c.Security.FreshnessWindow = -1 },
			wantPath: "security.freshness_window",
		},
		{
			name: "duplicate static access key",
			mutate: func(c *GatewayConfig) {
				c.Collaborators.Credentials.Static = []StaticCredential{
					{AccessKey: "a", SecretKey: "x"},
					{AccessKey: "a", SecretKey: "y"},
				}
			},
			wantPath: "collaborators.credentials.static[1].access_key",
		},
		{
			name:     "redis credentials without url",
			mutate:   func(c *GatewayConfig) { c.Collaborators.Credentials.Type = TypeRedis },
			wantPath: "collaborators.credentials.redis.url",
		},
		{
			name:     "vault without address",
			mutate:   func(c *GatewayConfig) { c.Collaborators.Credentials.Type = TypeVault },
			wantPath: "collaborators.credentials.vault.address",
		},
		{
			name:     "unknown registry type",
			mutate:   func(c *GatewayConfig) { c.Collaborators.Registry.Type = "etcd" },
			wantPath: "collaborators.registry.type",
		},
		{
			name:     "sqlite registry without path",
			mutate:   func(c *GatewayConfig) { c.Collaborators.Registry.Type = TypeSQLite },
			wantPath: "collaborators.registry.sqlite.path",
		},
		{
			name:     "http registry without base url",
			mutate:   func(c *GatewayConfig) { c.Collaborators.Registry.Type = TypeHTTP },
			wantPath: "collaborators.registry.http.base_url",
		},
		{
			name:     "unknown counter type",
			mutate:   func(c *GatewayConfig) { c.Collaborators.Counter.Type = TypeVault },
			wantPath: "collaborators.counter.type",
		},
		{
			name:     "zero workers",
			mutate:   func(c *GatewayConfig) { c.Metering.Workers = -1 },
			wantPath: "metering.workers",
		},
		{
			name:     "same listener twice",
			mutate:   func(c *GatewayConfig) { c.Admin.Listen = c.Listen },
			wantPath: "admin.listen",
		},
		{
			name:     "bad log level",
			mutate:   func(c *GatewayConfig) { c.Observability.Logging.Level = "verbose" },
			wantPath: "observability.logging.level",
		},
		{
			name:     "sampling rate out of range",
			mutate:   func(c *GatewayConfig) { c.Observability.Tracing.SamplingRate = 2 },
			wantPath: "observability.tracing.sampling_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Equal(t, "configuration is nil", err.Error())
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: b", ValidationErrors{{Path: "a", Message: "b"}}.Error())

	multi := ValidationErrors{{Path: "a", Message: "b"}, {Message: "c"}}
	assert.Contains(t, multi.Error(), "2 validation errors")
	assert.Contains(t, multi.Error(), "2. c")
}
