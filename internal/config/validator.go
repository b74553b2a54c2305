package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a gateway configuration.
func ValidateConfig(config *GatewayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns ValidationErrors when
// anything is wrong.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateListeners(config)
	v.validateBackend(&config.Backend)
	v.validateSecurity(&config.Security)
	v.validateCredentials(&config.Collaborators.Credentials)
	v.validateRegistry(&config.Collaborators.Registry)
	v.validateCounter(&config.Collaborators.Counter)
	v.validateMetering(&config.Metering)
	v.validateObservability(&config.Observability)

	if config.Intercept.MaxLogBytes < 0 {
		v.addError("intercept.max_log_bytes", "must not be negative")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateListeners(config *GatewayConfig) {
	if config.Listen == "" {
		v.addError("listen", "listen address is required")
	}
	if config.Admin.Listen == "" {
		v.addError("admin.listen", "admin listen address is required")
	}
	if config.Listen != "" && config.Listen == config.Admin.Listen {
		v.addError("admin.listen", "admin listener must differ from the gateway listener")
	}
	if !strings.HasPrefix(config.Admin.MetricsPath, "/") {
		v.addError("admin.metrics_path", "must start with '/'")
	}
}

func (v *Validator) validateBackend(backend *BackendConfig) {
	u, err := url.Parse(backend.Target)
	switch {
	case backend.Target == "":
		v.addError("backend.target", "target is required")
	case err != nil:
		v.addError("backend.target", fmt.Sprintf("invalid URL: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		v.addError("backend.target", "scheme must be http or https")
	case u.Host == "":
		v.addError("backend.target", "host is required")
	}

	if backend.Timeout < 0 {
		v.addError("backend.timeout", "must not be negative")
	}
}

func (v *Validator) validateSecurity(sec *SecurityConfig) {
	for i, ip := range sec.IPAllowList {
		if net.ParseIP(ip) == nil {
			v.addError(fmt.Sprintf("security.ip_allow_list[%d]", i), fmt.Sprintf("%q is not an IP address", ip))
		}
	}
	for i, cidr := range sec.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil && net.ParseIP(cidr) == nil {
			v.addError(fmt.Sprintf("security.trusted_proxies[%d]", i), fmt.Sprintf("%q is not an IP or CIDR", cidr))
		}
	}

	if sec.NonceCeiling <= 0 {
		v.addError("security.nonce_ceiling", "must be positive")
	}
	if sec.FreshnessWindow <= 0 {
		v.addError("security.freshness_window", "must be positive")
	}
	if sec.ClockSkew != nil && *sec.ClockSkew < 0 {
		v.addError("security.clock_skew", "must not be negative")
	}
	if sec.Signature.Algorithm == "" {
		v.addError("security.signature.algorithm", "algorithm is required")
	}
}

func (v *Validator) validateCredentials(c *CredentialsConfig) {
	const path = "collaborators.credentials"

	switch c.Type {
	case TypeMemory:
		seen := make(map[string]bool, len(c.Static))
		for i, cred := range c.Static {
			itemPath := fmt.Sprintf("%s.static[%d]", path, i)
			if cred.AccessKey == "" {
				v.addError(itemPath+".access_key", "access key is required")
			} else if seen[cred.AccessKey] {
				v.addError(itemPath+".access_key", fmt.Sprintf("duplicate access key %q", cred.AccessKey))
			}
			seen[cred.AccessKey] = true
			if cred.SecretKey == "" {
				v.addError(itemPath+".secret_key", "secret key is required")
			}
		}
	case TypeRedis:
		v.validateRedis(c.Redis, path+".redis")
	case TypeVault:
		if c.Vault == nil || c.Vault.Address == "" {
			v.addError(path+".vault.address", "vault address is required")
		}
	default:
		v.addError(path+".type", fmt.Sprintf("unsupported type %q", c.Type))
	}

	if c.Timeout < 0 {
		v.addError(path+".timeout", "must not be negative")
	}
}

func (v *Validator) validateRegistry(r *RegistryConfig) {
	const path = "collaborators.registry"

	switch r.Type {
	case TypeMemory:
		for i, iface := range r.Static {
			itemPath := fmt.Sprintf("%s.static[%d]", path, i)
			if iface.ID == "" {
				v.addError(itemPath+".id", "id is required")
			}
			if iface.URL == "" {
				v.addError(itemPath+".url", "url is required")
			}
			if iface.Method == "" {
				v.addError(itemPath+".method", "method is required")
			}
		}
	case TypeSQLite:
		v.validateSQLite(r.SQLite, path+".sqlite")
	case TypeHTTP:
		if r.HTTP == nil || r.HTTP.BaseURL == "" {
			v.addError(path+".http.base_url", "base URL is required")
		} else if _, err := url.ParseRequestURI(r.HTTP.BaseURL); err != nil {
			v.addError(path+".http.base_url", fmt.Sprintf("invalid URL: %v", err))
		}
	default:
		v.addError(path+".type", fmt.Sprintf("unsupported type %q", r.Type))
	}

	if r.Timeout < 0 {
		v.addError(path+".timeout", "must not be negative")
	}
}

func (v *Validator) validateCounter(c *CounterConfig) {
	const path = "collaborators.counter"

	switch c.Type {
	case TypeMemory:
	case TypeRedis:
		v.validateRedis(c.Redis, path+".redis")
	case TypeSQLite:
		v.validateSQLite(c.SQLite, path+".sqlite")
	default:
		v.addError(path+".type", fmt.Sprintf("unsupported type %q", c.Type))
	}

	if c.Timeout < 0 {
		v.addError(path+".timeout", "must not be negative")
	}
}

func (v *Validator) validateRedis(r *RedisConfig, path string) {
	if r == nil || r.URL == "" {
		v.addError(path+".url", "redis URL is required")
		return
	}
	if r.PoolSize < 0 {
		v.addError(path+".pool_size", "must not be negative")
	}
}

func (v *Validator) validateSQLite(s *SQLiteConfig, path string) {
	if s == nil || s.Path == "" {
		v.addError(path+".path", "database path is required")
	}
}

func (v *Validator) validateMetering(m *MeteringConfig) {
	if m.Workers <= 0 {
		v.addError("metering.workers", "must be positive")
	}
	if m.QueueSize <= 0 {
		v.addError("metering.queue_size", "must be positive")
	}
	if m.MaxRetries < 0 {
		v.addError("metering.max_retries", "must not be negative")
	}
	if m.Breaker.Threshold <= 0 {
		v.addError("metering.breaker.threshold", "must be positive")
	}
}

func (v *Validator) validateObservability(obs *ObservabilityConfig) {
	switch strings.ToLower(obs.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		v.addError("observability.logging.level", fmt.Sprintf("unsupported level %q", obs.Logging.Level))
	}

	switch obs.Logging.Format {
	case "json", "console":
	default:
		v.addError("observability.logging.format", fmt.Sprintf("unsupported format %q", obs.Logging.Format))
	}

	if obs.Tracing.SamplingRate < 0 || obs.Tracing.SamplingRate > 1 {
		v.addError("observability.tracing.sampling_rate", "must be between 0 and 1")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{
		Path:    path,
		Message: message,
	})
}
