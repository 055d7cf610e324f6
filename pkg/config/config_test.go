package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SCHOOLHOST_CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "school_", cfg.TenantDatabasePrefix)
	assert.Equal(t, 80.0, cfg.QuotaWarningPercent)
	assert.Equal(t, 100.0, cfg.QuotaCriticalPercent)
	assert.Equal(t, []string{"www", "admin", "api", "app", "mail"}, cfg.ReservedSubdomains)
	assert.Equal(t, "default", cfg.Source("tenant_database_prefix"))
	assert.NoError(t, cfg.Validate())
}

func TestLoadPrecedence(t *testing.T) {
	dir := writeConfigFile(t, `
tenant_database_prefix: tenant_
tenant_cache_ttl: 90s
base_domain: schools.test
log_level: debug
`)
	t.Setenv("SCHOOLHOST_CONFIG_PATH", dir)
	t.Setenv("SCHOOLHOST_LOG_LEVEL", "warn")
	t.Setenv("DATABASE_URL", "postgres://app:secret@db:5432/registry?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tenant_", cfg.TenantDatabasePrefix)
	assert.Equal(t, "file", cfg.Source("tenant_database_prefix"))
	assert.Equal(t, 90*time.Second, cfg.TenantCacheTTL)
	assert.Equal(t, "schools.test", cfg.BaseDomain)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "environment", cfg.Source("log_level"))

	assert.Equal(t, cfg.DatabaseURL, cfg.AdminDatabaseURL)
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.ConfigFilePath())
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := writeConfigFile(t, "tenant_cache_size: [not, a, number]\n")
	t.Setenv("SCHOOLHOST_CONFIG_PATH", dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad prefix", func(c *Config) { c.TenantDatabasePrefix = "School-" }, "tenant_database_prefix"},
		{"inverted thresholds", func(c *Config) { c.QuotaWarningPercent = 100; c.QuotaCriticalPercent = 80 }, "quota_warning_percent"},
		{"redis without url", func(c *Config) { c.SessionStore = StorageRedis }, "redis_url"},
		{"unknown storage", func(c *Config) { c.RateLimitStorage = "etcd" }, "rate_limit_storage"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"no workers", func(c *Config) { c.MigrationConcurrency = 0 }, "migration_concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAttributesRedactSecrets(t *testing.T) {
	cfg := newDefault()
	cfg.DatabaseURL = "postgres://app:secret@db:5432/registry"
	cfg.AdminTokenSecret = "hunter2"

	values := map[string]string{}
	for _, attr := range cfg.Attributes() {
		values[attr.Name] = attr.Value
	}

	assert.NotContains(t, values["database_url"], "secret")
	assert.Equal(t, "********", values["admin_token_secret"])
	assert.Equal(t, "www,admin,api,app,mail", values["reserved_subdomains"])

	out, err := cfg.FormatJSON()
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, cfg.FormatText(), "tenant_database_prefix")
}

func TestIsReservedSubdomain(t *testing.T) {
	cfg := newDefault()
	assert.True(t, cfg.IsReservedSubdomain("WWW"))
	assert.False(t, cfg.IsReservedSubdomain("greenfield"))
}
