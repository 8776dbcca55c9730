package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
providers:
  default: openai
  entries:
    openai:
      dialect: openai
      base_url: https://api.openai.com/v1
      api_key_env: OPENAI_API_KEY
      default_model: gpt-4o
      context_window: 128000
      input_rate_per_token: 0.0000025
      output_rate_per_token: 0.00001
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentcore.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Pricing.CacheFile != "pricing_cache.json" {
		t.Errorf("Pricing.CacheFile = %q, want pricing_cache.json", cfg.Pricing.CacheFile)
	}
	if cfg.Audit.TraceDir != "traces" || cfg.Audit.Backend != "json" {
		t.Errorf("Audit = %+v, want default trace_dir/backend", cfg.Audit)
	}
	if cfg.Tools.MaxConcurrent != 4 || cfg.Tools.DefaultTimeoutSec != 30 {
		t.Errorf("Tools = %+v, want default concurrency/timeout", cfg.Tools)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want default level/format", cfg.Logging)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error loading a nonexistent file")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\nbogus_top_level_field: true\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown top-level field")
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, minimalYAML+"\n---\nproviders:\n  default: openai\n  entries: {}\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for a multi-document YAML file")
	}
}

func TestLoadValidatesDefaultProviderExists(t *testing.T) {
	yaml := `
providers:
  default: missing
  entries:
    openai:
      dialect: openai
      context_window: 1000
`
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Error("expected error when providers.default has no matching entry")
	}
}

func TestLoadValidatesDialect(t *testing.T) {
	yaml := `
providers:
  default: weird
  entries:
    weird:
      dialect: carrier-pigeon
      context_window: 1000
`
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown dialect")
	}
}

func TestLoadValidatesPositiveContextWindow(t *testing.T) {
	yaml := `
providers:
  default: openai
  entries:
    openai:
      dialect: openai
      context_window: 0
`
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-positive context_window")
	}
}

func TestLoadDefaultsMissingDialectToOpenAI(t *testing.T) {
	yaml := `
providers:
  default: noname
  entries:
    noname:
      context_window: 1000
`
	path := writeConfig(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Providers["noname"].Dialect != "openai" {
		t.Errorf("Dialect = %q, want openai default", cfg.Providers.Providers["noname"].Dialect)
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_BASE_URL", "https://example.test/v1")
	yaml := `
providers:
  default: openai
  entries:
    openai:
      dialect: openai
      base_url: ${TEST_BASE_URL}
      context_window: 1000
`
	path := writeConfig(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Providers["openai"].BaseURL != "https://example.test/v1" {
		t.Errorf("BaseURL = %q, want expanded env var", cfg.Providers.Providers["openai"].BaseURL)
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("AGENTCORE_MAX_RETRIES", "9")
	t.Setenv("AGENTCORE_LOG_LEVEL", "debug")
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retry.MaxRetries != 9 {
		t.Errorf("Retry.MaxRetries = %d, want 9 (env override)", cfg.Retry.MaxRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (env override)", cfg.Logging.Level)
	}
}

func TestAPIKeyResolvesFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test-123")
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	key, err := cfg.APIKey("openai")
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if key != "sk-test-123" {
		t.Errorf("APIKey = %q, want sk-test-123", key)
	}
}

func TestAPIKeyErrorsOnUnsetEnvVar(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.APIKey("openai"); err == nil {
		t.Error("expected error when the configured env var is unset")
	}
}

func TestAPIKeyErrorsOnUnknownProvider(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := cfg.APIKey("nonexistent"); err == nil {
		t.Error("expected error for unknown provider name")
	}
}
