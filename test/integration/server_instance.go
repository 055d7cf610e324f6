package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/app"
	"github.com/doodlesbykumbi/schoolhost/pkg/config"
	"github.com/doodlesbykumbi/schoolhost/pkg/logging"
	"github.com/doodlesbykumbi/schoolhost/pkg/server"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/endpoints"
)

// ServerInstance is a running schoolhost server
type ServerInstance struct {
	URL  string
	Port int

	app     *app.App
	server  *server.Server
	cancel  context.CancelFunc
	process *exec.Cmd
}

// freePort asks the kernel for an unused port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func testConfig(dbURL string) *config.Config {
	cfg := config.Default()
	cfg.DatabaseURL = dbURL
	cfg.AdminDatabaseURL = dbURL
	cfg.TenantDatabasePrefix = "it_school_"
	cfg.BaseDomain = baseDomain
	cfg.AdminTokenSecret = adminSecret
	cfg.GlobalRateLimitEnabled = false
	cfg.LogLevel = "warn"
	return cfg
}

// startInlineServer runs the server in-process (no binary needed)
func startInlineServer(dbURL string) (*ServerInstance, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}

	cfg := testConfig(dbURL)
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, err
	}
	backends, err := app.Postgres(cfg, nil)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, logger, backends, nil)
	if err != nil {
		return nil, err
	}

	s := server.NewServer(cfg, logger, a.Components(), "127.0.0.1", strconv.Itoa(port))
	endpoints.RegisterAll(s)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = a.Limiter.Run(ctx) }()
	go func() { _ = s.Start() }()

	return &ServerInstance{
		URL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:   port,
		app:    a,
		server: s,
		cancel: cancel,
	}, nil
}

// startBinaryServer starts the schoolctl server binary
func startBinaryServer(binaryPath, dbURL string) (*ServerInstance, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	configDir, err := os.MkdirTemp("", "schoolhost-config")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	// --no-migrate since the test setup already ran the migrations
	cmd := exec.CommandContext(ctx, binaryPath, "server", "--no-migrate", "-b", "127.0.0.1", "-p", strconv.Itoa(port))
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+dbURL,
		"SCHOOLHOST_CONFIG_PATH="+configDir,
		"SCHOOLHOST_TENANT_DATABASE_PREFIX=it_school_",
		"SCHOOLHOST_BASE_DOMAIN="+baseDomain,
		"SCHOOLHOST_ADMIN_TOKEN_SECRET="+adminSecret,
		"SCHOOLHOST_GLOBAL_RATE_LIMIT_ENABLED=false",
		"SCHOOLHOST_LOG_LEVEL=warn",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start binary: %w", err)
	}

	return &ServerInstance{
		URL:     fmt.Sprintf("http://127.0.0.1:%d", port),
		Port:    port,
		cancel:  cancel,
		process: cmd,
	}, nil
}

// Stop shuts the server down and releases its connections.
func (s *ServerInstance) Stop() {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.server.Shutdown(ctx)
		cancel()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.process != nil && s.process.Process != nil {
		_ = s.process.Wait()
	}
	if s.app != nil {
		_ = s.app.Close()
	}
}
