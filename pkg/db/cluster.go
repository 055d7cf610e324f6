package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
)

// Cluster runs administrative statements against the postgres cluster that
// hosts tenant databases. CREATE DATABASE cannot run inside a transaction
// block, so this goes through database/sql rather than gorm.
type Cluster struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenCluster connects to the maintenance database at url.
func OpenCluster(url string, timeout time.Duration) (*Cluster, error) {
	conn, err := pq.NewConnector(url)
	if err != nil {
		return nil, fmt.Errorf("invalid admin database url: %w", err)
	}
	return NewCluster(sql.OpenDB(conn), timeout), nil
}

// NewCluster wraps an existing handle.
func NewCluster(db *sql.DB, timeout time.Duration) *Cluster {
	return &Cluster{db: db, timeout: timeout}
}

func (c *Cluster) DatabaseExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := WithTimeout(ctx, c.timeout)
	defer cancel()

	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, errs.Classify("db.DatabaseExists", err)
	}
	return exists, nil
}

func (c *Cluster) CreateDatabase(ctx context.Context, name string) error {
	ctx, cancel := WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return errs.Classify("db.CreateDatabase", err)
	}
	return nil
}

// DropDatabase terminates open sessions on name and drops it. Dropping a
// database that does not exist is not an error.
func (c *Cluster) DropDatabase(ctx context.Context, name string) error {
	ctx, cancel := WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE datname = $1 AND pid <> pg_backend_pid()`, name,
	); err != nil {
		return errs.Classify("db.DropDatabase", err)
	}
	if _, err := c.db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		return errs.Classify("db.DropDatabase", err)
	}
	return nil
}

func (c *Cluster) Ping(ctx context.Context) error {
	ctx, cancel := WithTimeout(ctx, c.timeout)
	defer cancel()
	return errs.Classify("db.Ping", c.db.PingContext(ctx))
}

func (c *Cluster) Close() error {
	return c.db.Close()
}
