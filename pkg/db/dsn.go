package db

import (
	"fmt"
	"net/url"
)

// TenantDatabaseName derives the database name of a tenant. It is a pure
// function of the id, so the same tenant always maps to the same database.
func TenantDatabaseName(prefix string, tenantID int64) string {
	return fmt.Sprintf("%s%d", prefix, tenantID)
}

// DatabaseURL returns base with its database path replaced by name.
// Credentials, host and query parameters are kept.
func DatabaseURL(base, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("invalid database url: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/" + name
	u.RawPath = ""
	return u.String(), nil
}
