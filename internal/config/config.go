// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Switchyard Contributors

// Package config loads switchyard configuration from defaults, an optional
// YAML file, SWITCHYARD_* environment variables and command-line flags.
package config

import (
	"errors"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/switchyard-dev/switchyard/internal/registry"
	"github.com/switchyard-dev/switchyard/internal/secrets"
	syerr "github.com/switchyard-dev/switchyard/pkg/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWITCHYARD"

// Config is the top-level switchyard configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Agent      AgentConfig               `mapstructure:"agent"`
	Policy     PolicyConfig              `mapstructure:"policy"`
	Storage    StorageConfig             `mapstructure:"storage"`
	Redis      RedisConfig               `mapstructure:"redis"`
	AMQP       AMQPConfig                `mapstructure:"amqp"`
	Backend    BackendConfig             `mapstructure:"backend"`
	Telemetry  TelemetryConfig           `mapstructure:"telemetry"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
	Logging    LoggingConfig             `mapstructure:"logging"`
}

// NetworkingConfig controls the HTTP listener.
type NetworkingConfig struct {
	Listen      string          `mapstructure:"listen"`
	CORSOrigins []string        `mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles API requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ProviderConfig holds credentials and endpoint for a reasoning provider.
// APIKey may be a keyring://service/key reference.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig selects models as "provider/model" references.
type ModelsConfig struct {
	Default  string   `mapstructure:"default"`
	Failover []string `mapstructure:"failover"`
	// Roles overrides the default per caller role.
	Roles map[string]string `mapstructure:"roles"`
}

// AgentConfig bounds agent turns.
type AgentConfig struct {
	MaxRounds     int           `mapstructure:"max_rounds"`
	HistoryWindow int           `mapstructure:"history_window"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
}

// PolicyConfig configures rate limiting.
type PolicyConfig struct {
	Window  time.Duration `mapstructure:"window"`
	Limiter string        `mapstructure:"limiter"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// RedisConfig is used by the redis limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// AMQPConfig enables gate event publishing when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// BackendConfig points at the platform capability backend.
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig enables OTLP trace export when OTLPEndpoint is set.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// MetricsConfig toggles the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig selects the log handler.
type LoggingConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// knownProviders are the provider adapters serve can build.
var knownProviders = []string{"anthropic", "google", "openai"}

// SetDefaults installs every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8088")
	v.SetDefault("networking.cors_origins", []string{})
	v.SetDefault("networking.rate_limit.requests_per_second", 20.0)
	v.SetDefault("networking.rate_limit.burst", 40)
	v.SetDefault("models.default", "anthropic/claude-sonnet-4-5")
	v.SetDefault("agent.max_rounds", 5)
	v.SetDefault("agent.history_window", 50)
	v.SetDefault("agent.tool_timeout", 30*time.Second)
	v.SetDefault("policy.window", time.Hour)
	v.SetDefault("policy.limiter", "sqlite")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("redis.prefix", "switchyard:rate:")
	v.SetDefault("amqp.exchange", "switchyard.gates")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.level", "info")
}

// NewViper returns a viper instance with defaults and environment
// overrides. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges the YAML file at path into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return syerr.Wrap(err, syerr.CodeConfigLoadReadFailure, "reading config file",
			syerr.Field("path", path))
	}
	return nil
}

// FromViper resolves keyring references (when resolver is non-nil),
// decodes v and validates the result. Unresolvable references are logged
// and left in place; validate --check-keys reports them.
func FromViper(v *viper.Viper, resolver *secrets.Resolver) (*Config, error) {
	if resolver != nil {
		for _, err := range resolver.ResolveConfig(v) {
			slog.Warn("failed to resolve keyring reference, keeping original value", "error", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, syerr.Wrap(err, syerr.CodeConfigParseInvalidFormat, "decoding config")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, syerr.Wrap(errors.Join(errs...), syerr.CodeConfigValidateInvalidValue, "validating config")
	}
	return &cfg, nil
}

// Load reads path (optional) over defaults and the environment. Keyring
// references are not resolved.
func Load(path string) (*Config, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v, nil)
}

func invalid(format string, args ...any) error {
	return syerr.Errorf(syerr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

// Validate returns every problem found rather than the first.
func (c *Config) Validate() []error {
	var errs []error
	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateAgent()...)
	errs = append(errs, c.validatePolicy()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateIntegrations()...)
	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error
	n := c.Networking

	if n.Listen == "" {
		errs = append(errs, invalid("networking.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(n.Listen); err != nil {
		errs = append(errs, invalid("networking.listen must be host:port, got %q", n.Listen))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
		errs = append(errs, invalid("networking.listen port must be 1-65535, got %q", portStr))
	}

	for i, origin := range n.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, invalid("networking.cors_origins[%d] must not be empty", i))
		}
	}
	if n.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, invalid("networking.rate_limit.requests_per_second must be greater than 0, got %g",
			n.RateLimit.RequestsPerSecond))
	}
	if n.RateLimit.Burst < 1 {
		errs = append(errs, invalid("networking.rate_limit.burst must be at least 1, got %d", n.RateLimit.Burst))
	}
	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	for name := range c.Providers {
		if !slices.Contains(knownProviders, name) {
			errs = append(errs, invalid("providers.%s is not a supported provider %v", name, knownProviders))
		}
	}

	check := func(field, ref string) {
		if provider, model, ok := strings.Cut(ref, "/"); !ok || provider == "" || model == "" {
			errs = append(errs, invalid("%s must be in \"provider/model\" format, got %q", field, ref))
			return
		}
		// A nil map means no providers section at all, which is valid for
		// tooling commands that never call a provider.
		if c.Providers == nil {
			return
		}
		if name := ProviderOf(ref); !c.hasProvider(name) {
			errs = append(errs, invalid("%s %q references provider %q which is not configured", field, ref, name))
		}
	}

	if c.Models.Default == "" {
		errs = append(errs, invalid("models.default must not be empty"))
	} else {
		check("models.default", c.Models.Default)
	}
	for i, ref := range c.Models.Failover {
		check("models.failover["+strconv.Itoa(i)+"]", ref)
	}
	for role, ref := range c.Models.Roles {
		if _, err := registry.ParseRole(role); err != nil {
			errs = append(errs, invalid("models.roles.%s is not a known role", role))
			continue
		}
		check("models.roles."+role, ref)
	}
	return errs
}

func (c *Config) validateAgent() []error {
	var errs []error
	if c.Agent.MaxRounds < 1 {
		errs = append(errs, invalid("agent.max_rounds must be at least 1, got %d", c.Agent.MaxRounds))
	}
	if c.Agent.HistoryWindow < 1 {
		errs = append(errs, invalid("agent.history_window must be at least 1, got %d", c.Agent.HistoryWindow))
	}
	if c.Agent.ToolTimeout <= 0 {
		errs = append(errs, invalid("agent.tool_timeout must be positive, got %s", c.Agent.ToolTimeout))
	}
	return errs
}

func (c *Config) validatePolicy() []error {
	var errs []error
	if c.Policy.Window <= 0 {
		errs = append(errs, invalid("policy.window must be positive, got %s", c.Policy.Window))
	}
	switch c.Policy.Limiter {
	case "memory":
	case "sqlite":
		if c.Storage.Backend != "sqlite" {
			errs = append(errs, invalid("policy.limiter sqlite requires storage.backend sqlite, got %q", c.Storage.Backend))
		}
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, invalid("policy.limiter redis requires redis.addr"))
		}
	default:
		errs = append(errs, invalid("policy.limiter must be one of [memory, sqlite, redis], got %q", c.Policy.Limiter))
	}
	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error
	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.DataDir == "" {
			errs = append(errs, invalid("storage.data_dir must not be empty for the sqlite backend"))
		}
	default:
		errs = append(errs, invalid("storage.backend must be one of [sqlite, memory], got %q", c.Storage.Backend))
	}
	return errs
}

func (c *Config) validateIntegrations() []error {
	var errs []error
	if c.Backend.BaseURL != "" {
		u, err := url.Parse(c.Backend.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, invalid("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL))
		}
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, invalid("backend.timeout must be positive, got %s", c.Backend.Timeout))
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		errs = append(errs, invalid("amqp.exchange must not be empty when amqp.url is set"))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, invalid("redis.db must not be negative, got %d", c.Redis.DB))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) hasProvider(name string) bool {
	_, ok := c.Providers[name]
	return ok
}

// ProviderOf returns the provider half of a "provider/model" reference.
func ProviderOf(ref string) string {
	provider, _, _ := strings.Cut(ref, "/")
	return provider
}

// ParseLevel maps logging.level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, invalid("logging.level must be one of [debug, info, warn, error], got %q", s)
	}
	return l, nil
}
