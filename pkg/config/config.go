package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "/etc/schoolhost/config"
	ConfigFileName    = "schoolhost.yml"
)

// Storage backends accepted by session_store and rate_limit_storage.
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

var identifierRgx = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config holds every setting of the tenancy core.
type Config struct {
	// DatabaseURL points at the platform registry database.
	DatabaseURL string `yaml:"database_url" json:"database_url" env:"DATABASE_URL"`
	// AdminDatabaseURL is used for CREATE/DROP DATABASE and as the template
	// for tenant connection strings. Defaults to DatabaseURL.
	AdminDatabaseURL     string        `yaml:"admin_database_url" json:"admin_database_url" env:"ADMIN_DATABASE_URL"`
	TenantDatabasePrefix string        `yaml:"tenant_database_prefix" json:"tenant_database_prefix" env:"SCHOOLHOST_TENANT_DATABASE_PREFIX"`
	TenantMaxOpenConns   int           `yaml:"tenant_max_open_conns" json:"tenant_max_open_conns" env:"SCHOOLHOST_TENANT_MAX_OPEN_CONNS"`
	QueryTimeout         time.Duration `yaml:"query_timeout" json:"query_timeout" env:"SCHOOLHOST_QUERY_TIMEOUT"`
	RetryAttempts        int           `yaml:"retry_attempts" json:"retry_attempts" env:"SCHOOLHOST_RETRY_ATTEMPTS"`
	RetryInterval        time.Duration `yaml:"retry_interval" json:"retry_interval" env:"SCHOOLHOST_RETRY_INTERVAL"`

	// BaseDomain is the domain tenant subdomains hang off, e.g. "schools.example".
	BaseDomain         string        `yaml:"base_domain" json:"base_domain" env:"SCHOOLHOST_BASE_DOMAIN"`
	ReservedSubdomains []string      `yaml:"reserved_subdomains" json:"reserved_subdomains" env:"SCHOOLHOST_RESERVED_SUBDOMAINS"`
	TenantCacheSize    int           `yaml:"tenant_cache_size" json:"tenant_cache_size" env:"SCHOOLHOST_TENANT_CACHE_SIZE"`
	TenantCacheTTL     time.Duration `yaml:"tenant_cache_ttl" json:"tenant_cache_ttl" env:"SCHOOLHOST_TENANT_CACHE_TTL"`

	SessionCookie string        `yaml:"session_cookie" json:"session_cookie" env:"SCHOOLHOST_SESSION_COOKIE"`
	SessionStore  string        `yaml:"session_store" json:"session_store" env:"SCHOOLHOST_SESSION_STORE"`
	SessionTTL    time.Duration `yaml:"session_ttl" json:"session_ttl" env:"SCHOOLHOST_SESSION_TTL"`
	RedisURL      string        `yaml:"redis_url" json:"redis_url" env:"REDIS_URL"`

	QuotaWarningPercent  float64       `yaml:"quota_warning_percent" json:"quota_warning_percent" env:"SCHOOLHOST_QUOTA_WARNING_PERCENT"`
	QuotaCriticalPercent float64       `yaml:"quota_critical_percent" json:"quota_critical_percent" env:"SCHOOLHOST_QUOTA_CRITICAL_PERCENT"`
	QuotaAlertCooldown   time.Duration `yaml:"quota_alert_cooldown" json:"quota_alert_cooldown" env:"SCHOOLHOST_QUOTA_ALERT_COOLDOWN"`

	RateLimitDefaultLimit  int           `yaml:"rate_limit_default_limit" json:"rate_limit_default_limit" env:"SCHOOLHOST_RATE_LIMIT_DEFAULT_LIMIT"`
	RateLimitDefaultWindow time.Duration `yaml:"rate_limit_default_window" json:"rate_limit_default_window" env:"SCHOOLHOST_RATE_LIMIT_DEFAULT_WINDOW"`
	RateLimitShards        int           `yaml:"rate_limit_shards" json:"rate_limit_shards" env:"SCHOOLHOST_RATE_LIMIT_SHARDS"`
	RateLimitMirrorBuffer  int           `yaml:"rate_limit_mirror_buffer" json:"rate_limit_mirror_buffer" env:"SCHOOLHOST_RATE_LIMIT_MIRROR_BUFFER"`
	RateLimitSweepInterval time.Duration `yaml:"rate_limit_sweep_interval" json:"rate_limit_sweep_interval" env:"SCHOOLHOST_RATE_LIMIT_SWEEP_INTERVAL"`
	GlobalRateLimitEnabled bool          `yaml:"global_rate_limit_enabled" json:"global_rate_limit_enabled" env:"SCHOOLHOST_GLOBAL_RATE_LIMIT_ENABLED"`
	GlobalRateLimitRPS     int64         `yaml:"global_rate_limit_rps" json:"global_rate_limit_rps" env:"SCHOOLHOST_GLOBAL_RATE_LIMIT_RPS"`
	RateLimitStorage       string        `yaml:"rate_limit_storage" json:"rate_limit_storage" env:"SCHOOLHOST_RATE_LIMIT_STORAGE"`

	TrialDays   int    `yaml:"trial_days" json:"trial_days" env:"SCHOOLHOST_TRIAL_DAYS"`
	DefaultPlan string `yaml:"default_plan" json:"default_plan" env:"SCHOOLHOST_DEFAULT_PLAN"`

	MigrationConcurrency   int  `yaml:"migration_concurrency" json:"migration_concurrency" env:"SCHOOLHOST_MIGRATION_CONCURRENCY"`
	DisableIntegrityChecks bool `yaml:"disable_integrity_checks" json:"disable_integrity_checks" env:"SCHOOLHOST_DISABLE_INTEGRITY_CHECKS"`

	LogLevel  string `yaml:"log_level" json:"log_level" env:"SCHOOLHOST_LOG_LEVEL"`
	LogFormat string `yaml:"log_format" json:"log_format" env:"SCHOOLHOST_LOG_FORMAT"`

	// AdminTokenSecret signs the HS256 bearer tokens of the admin API.
	// The admin API rejects every request while it is empty.
	AdminTokenSecret string `yaml:"admin_token_secret" json:"-" env:"SCHOOLHOST_ADMIN_TOKEN_SECRET"`

	// sources tracks where each value came from
	sources map[string]string

	// configFilePath is the path to the config file
	configFilePath string
}

// Attribute represents a configuration attribute with its value and source
type Attribute struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Global singleton config
var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	configMu.RLock()
	if globalConfig != nil {
		configMu.RUnlock()
		return globalConfig
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()

	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			globalConfig = newDefault()
		} else {
			globalConfig = cfg
		}
	}
	return globalConfig
}

// Reload reloads the configuration from file and environment
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}

// Default returns the built-in defaults without reading any source.
func Default() *Config {
	return newDefault()
}

func newDefault() *Config {
	return &Config{
		TenantDatabasePrefix:   "school_",
		TenantMaxOpenConns:     5,
		QueryTimeout:           10 * time.Second,
		RetryAttempts:          3,
		RetryInterval:          200 * time.Millisecond,
		ReservedSubdomains:     []string{"www", "admin", "api", "app", "mail"},
		TenantCacheSize:        1024,
		TenantCacheTTL:         5 * time.Minute,
		SessionCookie:          "sid",
		SessionStore:           StorageMemory,
		SessionTTL:             24 * time.Hour,
		QuotaWarningPercent:    80,
		QuotaCriticalPercent:   100,
		QuotaAlertCooldown:     time.Hour,
		RateLimitDefaultLimit:  60,
		RateLimitDefaultWindow: time.Minute,
		RateLimitShards:        64,
		RateLimitMirrorBuffer:  1024,
		RateLimitSweepInterval: time.Minute,
		GlobalRateLimitEnabled: true,
		GlobalRateLimitRPS:     100,
		RateLimitStorage:       StorageMemory,
		TrialDays:              14,
		DefaultPlan:            "free",
		MigrationConcurrency:   4,
		DisableIntegrityChecks: true,
		LogLevel:               "info",
		LogFormat:              "text",
		sources:                make(map[string]string),
	}
}

// Load loads configuration from defaults, the config file, a .env file in
// the working directory and the environment, in that order of precedence.
func Load() (*Config, error) {
	config := newDefault()

	names, envNames := fieldNames()
	for _, name := range names {
		config.sources[name] = "default"
	}

	configPath := os.Getenv("SCHOOLHOST_CONFIG_PATH")
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	config.configFilePath = filepath.Join(configPath, ConfigFileName)

	if data, err := os.ReadFile(config.configFilePath); err == nil {
		if err := config.applyFile(data); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", config.configFilePath, err)
		}
	}

	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	err := env.ParseWithOptions(config, env.Options{
		OnSet: func(tag string, value interface{}, isDefault bool) {
			if isDefault || fmt.Sprint(value) == "" {
				return
			}
			if name, ok := envNames[tag]; ok {
				config.sources[name] = "environment"
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if config.AdminDatabaseURL == "" {
		config.AdminDatabaseURL = config.DatabaseURL
	}
	return config, nil
}

// applyFile overlays the YAML document on c and marks every key present in
// the document as file sourced.
func (c *Config) applyFile(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	var present map[string]interface{}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return err
	}
	for key := range present {
		if _, ok := c.sources[key]; ok {
			c.sources[key] = "file"
		}
	}
	return nil
}

// fieldNames returns the yaml attribute names in declaration order and a
// map from environment variable to attribute name.
func fieldNames() ([]string, map[string]string) {
	t := reflect.TypeOf(Config{})
	names := make([]string, 0, t.NumField())
	envNames := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := yamlName(f)
		if name == "" {
			continue
		}
		names = append(names, name)
		if e := f.Tag.Get("env"); e != "" {
			envNames[e] = name
		}
	}
	return names, envNames
}

func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// ConfigFilePath returns the path to the config file
func (c *Config) ConfigFilePath() string {
	return c.configFilePath
}

// Source returns the source of a configuration attribute
func (c *Config) Source(name string) string {
	if c.sources == nil {
		return "default"
	}
	if s, ok := c.sources[name]; ok {
		return s
	}
	return "default"
}

// IsReservedSubdomain reports whether label may never name a tenant.
func (c *Config) IsReservedSubdomain(label string) bool {
	for _, r := range c.ReservedSubdomains {
		if strings.EqualFold(r, label) {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !identifierRgx.MatchString(c.TenantDatabasePrefix) {
		return fmt.Errorf("invalid tenant_database_prefix %q: must match %s", c.TenantDatabasePrefix, identifierRgx)
	}
	if c.QuotaWarningPercent <= 0 || c.QuotaCriticalPercent <= 0 {
		return fmt.Errorf("quota thresholds must be positive")
	}
	if c.QuotaWarningPercent >= c.QuotaCriticalPercent {
		return fmt.Errorf("quota_warning_percent (%v) must be below quota_critical_percent (%v)", c.QuotaWarningPercent, c.QuotaCriticalPercent)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must not be negative")
	}
	if c.TenantCacheSize <= 0 {
		return fmt.Errorf("tenant_cache_size must be positive")
	}
	if c.RateLimitShards <= 0 {
		return fmt.Errorf("rate_limit_shards must be positive")
	}
	if c.RateLimitDefaultLimit <= 0 || c.RateLimitDefaultWindow <= 0 {
		return fmt.Errorf("rate_limit_default_limit and rate_limit_default_window must be positive")
	}
	if c.MigrationConcurrency < 1 {
		return fmt.Errorf("migration_concurrency must be at least 1")
	}
	for name, backend := range map[string]string{"session_store": c.SessionStore, "rate_limit_storage": c.RateLimitStorage} {
		switch backend {
		case StorageMemory:
		case StorageRedis:
			if c.RedisURL == "" {
				return fmt.Errorf("%s is %q but redis_url is not set", name, backend)
			}
		default:
			return fmt.Errorf("invalid %s %q: must be %q or %q", name, backend, StorageMemory, StorageRedis)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}
	return nil
}

// Attributes returns all configuration attributes with their values and sources
func (c *Config) Attributes() []Attribute {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	attrs := make([]Attribute, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := yamlName(f)
		if name == "" {
			continue
		}
		value := formatValue(v.Field(i))
		switch {
		case f.Tag.Get("json") == "-" && value != "":
			value = "********"
		case strings.HasSuffix(name, "_url") && value != "":
			if u, err := url.Parse(value); err == nil {
				value = u.Redacted()
			}
		}
		attrs = append(attrs, Attribute{Name: name, Value: value, Source: c.Source(name)})
	}
	return attrs
}

func formatValue(v reflect.Value) string {
	switch x := v.Interface().(type) {
	case []string:
		return strings.Join(x, ",")
	case time.Duration:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FormatText returns a text representation of the configuration
func (c *Config) FormatText() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Config file: %s\n\n", c.configFilePath))
	sb.WriteString(fmt.Sprintf("%-32s %-40s %s\n", "NAME", "VALUE", "SOURCE"))
	sb.WriteString(fmt.Sprintf("%-32s %-40s %s\n", "----", "-----", "------"))

	for _, attr := range c.Attributes() {
		value := attr.Value
		if value == "" {
			value = "(not set)"
		}
		sb.WriteString(fmt.Sprintf("%-32s %-40s %s\n", attr.Name, value, attr.Source))
	}
	return sb.String()
}

// FormatJSON returns a JSON representation of the configuration
func (c *Config) FormatJSON() (string, error) {
	result := map[string]interface{}{
		"config_file": c.configFilePath,
		"attributes":  c.Attributes(),
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
