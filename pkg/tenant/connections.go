package tenant

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/metrics"
)

// OpenFunc opens a handle to the named database.
type OpenFunc func(ctx context.Context, name string) (*gorm.DB, error)

// Connections caches one lazily opened handle per database name for the
// lifetime of the process. Concurrent callers asking for the same name
// share a single open; a failed open is not cached.
type Connections struct {
	open    OpenFunc
	metrics *metrics.Metrics

	mu    sync.Mutex
	conns map[string]*conn
}

type conn struct {
	once sync.Once
	db   *gorm.DB
	err  error
}

// NewConnections returns an empty cache that opens handles with open.
func NewConnections(open OpenFunc, m *metrics.Metrics) *Connections {
	return &Connections{open: open, metrics: m, conns: map[string]*conn{}}
}

// DB returns the cached handle for name, opening it on first use.
func (c *Connections) DB(ctx context.Context, name string) (*gorm.DB, error) {
	c.mu.Lock()
	entry, ok := c.conns[name]
	if !ok {
		entry = &conn{}
		c.conns[name] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.db, entry.err = c.open(ctx, name)
		if entry.err == nil && c.metrics != nil {
			c.metrics.TenantConnections.Inc()
		}
	})
	if entry.err != nil {
		c.mu.Lock()
		if c.conns[name] == entry {
			delete(c.conns, name)
		}
		c.mu.Unlock()
		return nil, entry.err
	}
	return entry.db, nil
}

// Evict closes and forgets the handle for name, e.g. after the database
// was dropped.
func (c *Connections) Evict(name string) error {
	c.mu.Lock()
	entry, ok := c.conns[name]
	delete(c.conns, name)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.closeEntry(name, entry)
}

// Close closes every handle.
func (c *Connections) Close() error {
	c.mu.Lock()
	conns := c.conns
	c.conns = map[string]*conn{}
	c.mu.Unlock()

	var result *multierror.Error
	for name, entry := range conns {
		if err := c.closeEntry(name, entry); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Len returns the number of cached handles.
func (c *Connections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

func (c *Connections) closeEntry(name string, entry *conn) error {
	// Wait for an in-flight open so the handle is not leaked.
	entry.once.Do(func() { entry.err = fmt.Errorf("connection to %s evicted before open", name) })
	if entry.err != nil || entry.db == nil {
		return nil
	}
	if c.metrics != nil {
		c.metrics.TenantConnections.Dec()
	}
	sqlDB, err := entry.db.DB()
	if err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}
