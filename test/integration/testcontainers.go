package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/db"
)

const (
	baseDomain  = "schools.test"
	adminSecret = "integration-admin-secret"
)

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	// DB is the registry database, used for setup and assertions.
	DB          *gorm.DB
	Container   testcontainers.Container
	DatabaseURL string
	Server      *ServerInstance
	HTTPClient  *http.Client
}

// NewTestContext creates a new test context with a PostgreSQL testcontainer.
// Modes:
//   - Binary mode (default): Set SCHOOLHOST_BINARY to the path of the schoolctl binary
//   - Inline mode: Set SCHOOLHOST_INLINE=1 to run the server in-process (no binary needed)
func NewTestContext(ctx context.Context) (*TestContext, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	migrationsDir := filepath.Join(projectRoot, "db", "migrations")

	inlineMode := os.Getenv("SCHOOLHOST_INLINE") == "1"
	binaryPath := os.Getenv("SCHOOLHOST_BINARY")
	if !inlineMode && binaryPath == "" {
		return nil, fmt.Errorf("Either SCHOOLHOST_BINARY or SCHOOLHOST_INLINE=1 is required.\n\nBinary mode:\n  go build -o schoolctl ./cmd/schoolctl\n  SCHOOLHOST_INTEGRATION=1 SCHOOLHOST_BINARY=$(pwd)/schoolctl go test -v ./test/integration/...\n\nInline mode:\n  SCHOOLHOST_INTEGRATION=1 SCHOOLHOST_INLINE=1 go test -v ./test/integration/...")
	}

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("registry"),
		tcpostgres.WithUsername("schoolhost"),
		tcpostgres.WithPassword("schoolhost"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := runMigrations(connStr, migrationsDir); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	registry, err := db.Connect(db.Config{URL: connStr})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}

	var srv *ServerInstance
	if inlineMode {
		srv, err = startInlineServer(connStr)
	} else {
		srv, err = startBinaryServer(binaryPath, connStr)
	}
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	if err := waitForServer(srv.URL, 30*time.Second); err != nil {
		srv.Stop()
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return &TestContext{
		DB:          registry,
		Container:   pgContainer,
		DatabaseURL: connStr,
		Server:      srv,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// TenantDB opens a tenant database on the test cluster.
func (tc *TestContext) TenantDB(name string) (*gorm.DB, error) {
	url, err := db.DatabaseURL(tc.DatabaseURL, name)
	if err != nil {
		return nil, err
	}
	return db.Connect(db.Config{URL: url, MaxOpenConns: 1})
}

// waitForServer polls the health endpoint until it responds or times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.Server != nil {
		tc.Server.Stop()
	}
	if tc.DB != nil {
		if sqlDB, err := tc.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// findProjectRoot locates the project root directory
func findProjectRoot() (string, error) {
	paths := []string{
		"../..",
		"..",
		".",
	}

	for _, p := range paths {
		goMod := filepath.Join(p, "go.mod")
		if _, err := os.Stat(goMod); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("project root not found (looking for go.mod)")
}

// runMigrations applies the registry migrations the way schoolctl db migrate does.
func runMigrations(connStr, migrationsDir string) error {
	m, err := migrate.New("file://"+migrationsDir, connStr+"&x-migrations-table=registry_schema_migrations")
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
