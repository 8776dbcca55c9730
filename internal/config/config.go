// Package config loads the core's runtime configuration: provider
// endpoints, retry policy parameters, pricing/audit file locations, and
// tool execution limits. It does not parse CLI arguments or manage
// credential storage; those remain the caller's concern.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration loaded from a YAML file, with
// environment variable overrides layered on top.
type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Retry     RetryConfig     `yaml:"retry"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Audit     AuditConfig     `yaml:"audit"`
	Tools     ToolsConfig     `yaml:"tools"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProviderConfig describes one named LLM backend.
type ProviderConfig struct {
	// Dialect selects the wire protocol: "openai" or "anthropic".
	Dialect string `yaml:"dialect"`
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key; the
	// key itself is never stored in the config file.
	APIKeyEnv     string  `yaml:"api_key_env"`
	DefaultModel  string  `yaml:"default_model"`
	ContextWindow int     `yaml:"context_window"`
	InputRate     float64 `yaml:"input_rate_per_token"`
	OutputRate    float64 `yaml:"output_rate_per_token"`
	// RateLimitRPS bounds outbound requests per second; zero disables
	// local rate limiting for this provider.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// ProvidersConfig maps a provider name (e.g. "openai", "anthropic",
// "local") to its configuration.
type ProvidersConfig struct {
	Default   string                    `yaml:"default"`
	Providers map[string]ProviderConfig `yaml:"entries"`
}

// RetryConfig configures think_with_retry's default attempt count.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

// PricingConfig locates the persistent pricing cache file.
type PricingConfig struct {
	CacheFile string `yaml:"cache_file"`
}

// AuditConfig locates the execution trace store.
type AuditConfig struct {
	TraceDir string `yaml:"trace_dir"`
	// Backend selects the trace store: "json" (one file per trace) or
	// "sqlite" (a single database for traces too large to hold in memory).
	Backend string `yaml:"backend"`
}

// ToolsConfig bounds tool execution.
type ToolsConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent"`
	DefaultTimeoutSec int `yaml:"default_timeout_seconds"`
}

// LoggingConfig selects the structured logger's output format and level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads path as YAML (after expanding ${VAR}-style environment
// references), applies environment variable overrides, fills defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_DEFAULT_PROVIDER")); v != "" {
		cfg.Providers.Default = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_PRICING_CACHE_FILE")); v != "" {
		cfg.Pricing.CacheFile = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_AUDIT_TRACE_DIR")); v != "" {
		cfg.Audit.TraceDir = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_TOOLS_MAX_CONCURRENT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Tools.MaxConcurrent = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCORE_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Pricing.CacheFile == "" {
		cfg.Pricing.CacheFile = "pricing_cache.json"
	}
	if cfg.Audit.TraceDir == "" {
		cfg.Audit.TraceDir = "traces"
	}
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "json"
	}
	if cfg.Tools.MaxConcurrent == 0 {
		cfg.Tools.MaxConcurrent = 4
	}
	if cfg.Tools.DefaultTimeoutSec == 0 {
		cfg.Tools.DefaultTimeoutSec = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	for name, p := range cfg.Providers.Providers {
		if p.Dialect == "" {
			p.Dialect = "openai"
		}
		cfg.Providers.Providers[name] = p
	}
}

func validate(cfg *Config) error {
	if cfg.Providers.Default == "" {
		return fmt.Errorf("config: providers.default must name an entry in providers.entries")
	}
	if _, ok := cfg.Providers.Providers[cfg.Providers.Default]; !ok {
		return fmt.Errorf("config: providers.default %q has no matching providers.entries key", cfg.Providers.Default)
	}
	for name, p := range cfg.Providers.Providers {
		if p.Dialect != "openai" && p.Dialect != "anthropic" {
			return fmt.Errorf("config: provider %q has unknown dialect %q", name, p.Dialect)
		}
		if p.ContextWindow <= 0 {
			return fmt.Errorf("config: provider %q must set a positive context_window", name)
		}
	}
	if cfg.Audit.Backend != "json" && cfg.Audit.Backend != "sqlite" {
		return fmt.Errorf("config: audit.backend must be %q or %q", "json", "sqlite")
	}
	return nil
}

// APIKey resolves the API key for a named provider from its configured
// environment variable.
func (c *Config) APIKey(providerName string) (string, error) {
	p, ok := c.Providers.Providers[providerName]
	if !ok {
		return "", fmt.Errorf("config: no such provider %q", providerName)
	}
	key := os.Getenv(p.APIKeyEnv)
	if key == "" && p.APIKeyEnv != "" {
		return "", fmt.Errorf("config: environment variable %q for provider %q is unset", p.APIKeyEnv, providerName)
	}
	return key, nil
}

// RetryBackoffCap is the hardcoded ceiling the retry policy applies
// regardless of configuration; exposed here so operators can see it
// documented alongside the tunable MaxRetries.
const RetryBackoffCap = 32 * time.Second
