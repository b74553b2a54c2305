package config

import "time"

// Collaborator backend types.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
	TypeVault  = "vault"
	TypeSQLite = "sqlite"
	TypeHTTP   = "http"
)

// Default values applied by ApplyDefaults.
const (
	DefaultListen              = ":8090"
	DefaultAdminListen         = ":9090"
	DefaultMetricsPath         = "/metrics"
	DefaultBackendTarget       = "http://localhost:8123"
	DefaultBackendTimeout      = 30 * time.Second
	DefaultFlushInterval       = -1 * time.Nanosecond
	DefaultNonceCeiling        = 10000
	DefaultFreshnessWindow     = 5 * time.Minute
	DefaultClockSkew           = 5 * time.Second
	DefaultAlgorithm           = "sha256"
	DefaultCollaboratorTimeout = 2 * time.Second
	DefaultMeteringWorkers     = 4
	DefaultMeteringQueueSize   = 1024
	DefaultMeteringRetries     = 3
	DefaultBreakerThreshold    = 5
	DefaultBreakerTimeout      = 30 * time.Second
	DefaultMaxLogBytes         = 1024
	DefaultServiceName         = "signgw"
	DefaultRedisKeyPrefix      = "signgw:"
	DefaultVaultMount          = "secret"
	DefaultVaultPathPrefix     = "signgw/credentials"
)

// DefaultIPAllowList is the allow-list used when none is configured.
var DefaultIPAllowList = []string{"127.0.0.1"}

// GatewayConfig is the root configuration of the gateway. It is loaded once
// at startup and never mutated afterwards.
type GatewayConfig struct {
	Listen        string              `yaml:"listen" json:"listen"`
	Admin         AdminConfig         `yaml:"admin" json:"admin"`
	Backend       BackendConfig       `yaml:"backend" json:"backend"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Collaborators CollaboratorsConfig `yaml:"collaborators" json:"collaborators"`
	Metering      MeteringConfig      `yaml:"metering" json:"metering"`
	Intercept     InterceptConfig     `yaml:"intercept" json:"intercept"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// AdminConfig configures the admin listener serving metrics and health.
type AdminConfig struct {
	Listen      string `yaml:"listen" json:"listen"`
	MetricsPath string `yaml:"metrics_path,omitempty" json:"metricsPath,omitempty"`
}

// BackendConfig configures the single upstream requests are forwarded to.
type BackendConfig struct {
	Target        string   `yaml:"target" json:"target"`
	FlushInterval Duration `yaml:"flush_interval,omitempty" json:"flushInterval,omitempty"`
	Timeout       Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// SecurityConfig configures the access gate.
type SecurityConfig struct {
	IPAllowList     []string        `yaml:"ip_allow_list" json:"ipAllowList"`
	TrustedProxies  []string        `yaml:"trusted_proxies,omitempty" json:"trustedProxies,omitempty"`
	NonceCeiling    int64           `yaml:"nonce_ceiling" json:"nonceCeiling"`
	FreshnessWindow Duration        `yaml:"freshness_window" json:"freshnessWindow"`
	ClockSkew       *Duration       `yaml:"clock_skew,omitempty" json:"clockSkew,omitempty"`
	Signature       SignatureConfig `yaml:"signature" json:"signature"`
}

// SignatureConfig selects the signature algorithm.
type SignatureConfig struct {
	Algorithm string `yaml:"algorithm" json:"algorithm"`
}

// CollaboratorsConfig groups the three remote lookup services.
type CollaboratorsConfig struct {
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`
	Registry    RegistryConfig    `yaml:"registry" json:"registry"`
	Counter     CounterConfig     `yaml:"counter" json:"counter"`
}

// CredentialsConfig configures the credential store.
type CredentialsConfig struct {
	Type    string             `yaml:"type" json:"type"`
	Timeout Duration           `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Static  []StaticCredential `yaml:"static,omitempty" json:"static,omitempty"`
	Redis   *RedisConfig       `yaml:"redis,omitempty" json:"redis,omitempty"`
	Vault   *VaultConfig       `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// StaticCredential is a credential declared inline in the configuration.
type StaticCredential struct {
	AccessKey string `yaml:"access_key" json:"accessKey"`
	SecretKey string `yaml:"secret_key" json:"-"`
	UserID    string `yaml:"user_id" json:"userId"`
}

// RegistryConfig configures the interface registry.
type RegistryConfig struct {
	Type    string   `yaml:"type" json:"type"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// LookupPrefix is prepended to the request path to build the registry
	// key. Nil means the backend target; an explicit empty string keys by
	// bare path.
	LookupPrefix *string `yaml:"lookup_prefix,omitempty" json:"lookupPrefix,omitempty"`

	Static []StaticInterface   `yaml:"static,omitempty" json:"static,omitempty"`
	SQLite *SQLiteConfig       `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
	HTTP   *HTTPRegistryConfig `yaml:"http,omitempty" json:"http,omitempty"`
}

// StaticInterface is an interface descriptor declared inline.
type StaticInterface struct {
	ID       string `yaml:"id" json:"id"`
	URL      string `yaml:"url" json:"url"`
	Method   string `yaml:"method" json:"method"`
	OwnerID  string `yaml:"owner_id,omitempty" json:"ownerId,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// HTTPRegistryConfig configures the HTTP interface registry client.
type HTTPRegistryConfig struct {
	BaseURL string        `yaml:"base_url" json:"baseUrl"`
	Breaker BreakerConfig `yaml:"breaker,omitempty" json:"breaker,omitempty"`
}

// CounterConfig configures the invocation counter.
type CounterConfig struct {
	Type    string        `yaml:"type" json:"type"`
	Timeout Duration      `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Redis   *RedisConfig  `yaml:"redis,omitempty" json:"redis,omitempty"`
	SQLite  *SQLiteConfig `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`
}

// RedisConfig configures a Redis connection.
type RedisConfig struct {
	URL       string `yaml:"url" json:"url"`
	KeyPrefix string `yaml:"key_prefix,omitempty" json:"keyPrefix,omitempty"`
	PoolSize  int    `yaml:"pool_size,omitempty" json:"poolSize,omitempty"`
}

// VaultConfig configures a Vault KV v2 credential source.
type VaultConfig struct {
	Address    string `yaml:"address" json:"address"`
	Token      string `yaml:"token,omitempty" json:"-"`
	Mount      string `yaml:"mount,omitempty" json:"mount,omitempty"`
	PathPrefix string `yaml:"path_prefix,omitempty" json:"pathPrefix,omitempty"`
}

// SQLiteConfig configures a SQLite database file.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// MeteringConfig configures the asynchronous invocation dispatcher.
type MeteringConfig struct {
	Workers    int           `yaml:"workers" json:"workers"`
	QueueSize  int           `yaml:"queue_size" json:"queueSize"`
	MaxRetries int           `yaml:"max_retries" json:"maxRetries"`
	Breaker    BreakerConfig `yaml:"breaker" json:"breaker"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// InterceptConfig configures the response interceptor.
type InterceptConfig struct {
	MaxLogBytes int `yaml:"max_log_bytes" json:"maxLogBytes"`
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate" json:"samplingRate"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"serviceName,omitempty"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *GatewayConfig) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Admin.Listen == "" {
		c.Admin.Listen = DefaultAdminListen
	}
	if c.Admin.MetricsPath == "" {
		c.Admin.MetricsPath = DefaultMetricsPath
	}

	if c.Backend.Target == "" {
		c.Backend.Target = DefaultBackendTarget
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(DefaultBackendTimeout)
	}
	if c.Backend.FlushInterval == 0 {
		c.Backend.FlushInterval = Duration(DefaultFlushInterval)
	}

	c.Security.applyDefaults()
	c.Collaborators.applyDefaults()
	c.Metering.applyDefaults()

	if c.Intercept.MaxLogBytes == 0 {
		c.Intercept.MaxLogBytes = DefaultMaxLogBytes
	}

	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
	if c.Observability.Tracing.ServiceName == "" {
		c.Observability.Tracing.ServiceName = DefaultServiceName
	}
}

func (s *SecurityConfig) applyDefaults() {
	if s.IPAllowList == nil {
		s.IPAllowList = append([]string(nil), DefaultIPAllowList...)
	}
	if s.NonceCeiling == 0 {
		s.NonceCeiling = DefaultNonceCeiling
	}
	if s.FreshnessWindow == 0 {
		s.FreshnessWindow = Duration(DefaultFreshnessWindow)
	}
	if s.ClockSkew == nil {
		skew := Duration(DefaultClockSkew)
		s.ClockSkew = &skew
	}
	if s.Signature.Algorithm == "" {
		s.Signature.Algorithm = DefaultAlgorithm
	}
}

func (c *CollaboratorsConfig) applyDefaults() {
	if c.Credentials.Type == "" {
		c.Credentials.Type = TypeMemory
	}
	if c.Credentials.Timeout == 0 {
		c.Credentials.Timeout = Duration(DefaultCollaboratorTimeout)
	}
	if c.Credentials.Redis != nil {
		c.Credentials.Redis.applyDefaults()
	}
	if v := c.Credentials.Vault; v != nil {
		if v.Mount == "" {
			v.Mount = DefaultVaultMount
		}
		if v.PathPrefix == "" {
			v.PathPrefix = DefaultVaultPathPrefix
		}
	}

	if c.Registry.Type == "" {
		c.Registry.Type = TypeMemory
	}
	if c.Registry.Timeout == 0 {
		c.Registry.Timeout = Duration(DefaultCollaboratorTimeout)
	}
	if h := c.Registry.HTTP; h != nil {
		h.Breaker.applyDefaults()
	}

	if c.Counter.Type == "" {
		c.Counter.Type = TypeMemory
	}
	if c.Counter.Timeout == 0 {
		c.Counter.Timeout = Duration(DefaultCollaboratorTimeout)
	}
	if c.Counter.Redis != nil {
		c.Counter.Redis.applyDefaults()
	}
}

func (r *RedisConfig) applyDefaults() {
	if r.KeyPrefix == "" {
		r.KeyPrefix = DefaultRedisKeyPrefix
	}
}

func (m *MeteringConfig) applyDefaults() {
	if m.Workers == 0 {
		m.Workers = DefaultMeteringWorkers
	}
	if m.QueueSize == 0 {
		m.QueueSize = DefaultMeteringQueueSize
	}
	if m.MaxRetries == 0 {
		m.MaxRetries = DefaultMeteringRetries
	}
	m.Breaker.applyDefaults()
}

func (b *BreakerConfig) applyDefaults() {
	if b.Threshold == 0 {
		b.Threshold = DefaultBreakerThreshold
	}
	if b.Timeout == 0 {
		b.Timeout = Duration(DefaultBreakerTimeout)
	}
}

// LookupPrefix returns the prefix prepended to request paths when resolving
// interfaces.
func (c *GatewayConfig) LookupPrefix() string {
	if c.Collaborators.Registry.LookupPrefix != nil {
		return *c.Collaborators.Registry.LookupPrefix
	}
	return c.Backend.Target
}

// ClockSkewDuration returns the tolerated forward clock skew.
func (s *SecurityConfig) ClockSkewDuration() time.Duration {
	if s.ClockSkew == nil {
		return DefaultClockSkew
	}
	return s.ClockSkew.Duration()
}
