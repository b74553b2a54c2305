package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	assert.Equal(t, []string{"127.0.0.1"}, cfg.Security.IPAllowList)
	assert.Equal(t, int64(10000), cfg.Security.NonceCeiling)
	assert.Equal(t, 300000*time.Millisecond, cfg.Security.FreshnessWindow.Duration())
	assert.Equal(t, DefaultClockSkew, cfg.Security.ClockSkewDuration())
	assert.Equal(t, "sha256", cfg.Security.Signature.Algorithm)
	assert.Equal(t, TypeMemory, cfg.Collaborators.Credentials.Type)
	assert.Equal(t, TypeMemory, cfg.Collaborators.Registry.Type)
	assert.Equal(t, TypeMemory, cfg.Collaborators.Counter.Type)
	assert.Equal(t, 2*time.Second, cfg.Collaborators.Credentials.Timeout.Duration())
	assert.Equal(t, DefaultBackendTarget, cfg.LookupPrefix())
	assert.Equal(t, 1024, cfg.Intercept.MaxLogBytes)
	assert.Equal(t, 4, cfg.Metering.Workers)
	assert.Equal(t, 1024, cfg.Metering.QueueSize)

	require.NoError(t, ValidateConfig(cfg))
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	skew := Duration(0)
	cfg := &GatewayConfig{
		Security: SecurityConfig{
			IPAllowList:  []string{},
			NonceCeiling: 50,
			ClockSkew:    &skew,
		},
		Collaborators: CollaboratorsConfig{
			Counter: CounterConfig{Type: TypeRedis, Redis: &RedisConfig{URL: "redis://x"}},
		},
	}
	cfg.ApplyDefaults()

	assert.Empty(t, cfg.Security.IPAllowList)
	assert.Equal(t, int64(50), cfg.Security.NonceCeiling)
	assert.Equal(t, time.Duration(0), cfg.Security.ClockSkewDuration())
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Collaborators.Counter.Redis.KeyPrefix)
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "go syntax", input: "d: 5m", want: 5 * time.Minute},
		{name: "quoted", input: `d: "250ms"`, want: 250 * time.Millisecond},
		{name: "integer milliseconds", input: "d: 300000", want: 5 * time.Minute},
		{name: "empty", input: `d: ""`, want: 0},
		{name: "garbage", input: "d: soon", wantErr: true},
		{name: "not scalar", input: "d: [1]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out struct {
				D Duration `yaml:"d"`
			}
			err := yaml.Unmarshal([]byte(tt.input), &out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.D.Duration())
		})
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(b))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"2s"`), &d))
	assert.Equal(t, 2*time.Second, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`1500`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())

	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.Zero(t, d)
}

func TestStaticCredential_SecretOmittedFromJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(StaticCredential{AccessKey: "ak", SecretKey: "s3cr3t", UserID: "1"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "s3cr3t")
}
