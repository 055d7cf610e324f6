// Package config provides configuration management for the tenancy core.
//
// # Configuration Sources
//
// Configuration is resolved in increasing order of precedence:
//
//   - Built-in defaults
//   - The YAML file $SCHOOLHOST_CONFIG_PATH/schoolhost.yml (default /etc/schoolhost/config)
//   - A .env file in the working directory
//   - Environment variables
//
// Every attribute remembers which source set it, see Attributes and
// `schoolctl configuration show`.
//
// # Key Configuration Options
//
//   - DATABASE_URL: platform registry database
//   - ADMIN_DATABASE_URL: cluster connection used to create tenant databases
//   - REDIS_URL: session and rate limit storage when set to "redis"
//   - SCHOOLHOST_BASE_DOMAIN: domain tenant subdomains are resolved under
//   - SCHOOLHOST_ADMIN_TOKEN_SECRET: HS256 secret for the admin API
//   - SCHOOLHOST_LOG_LEVEL, SCHOOLHOST_LOG_FORMAT: logrus settings
package config
