package memory

import (
	"context"
	"sync"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

var (
	_ store.Cluster   = (*Cluster)(nil)
	_ store.Connector = (*Cluster)(nil)
)

// Cluster implements store.Cluster and store.Connector in memory. Each
// created database is a *Database.
type Cluster struct {
	mu        sync.Mutex
	databases map[string]*Database
	createErr error
	lateErr   error
	creates   int
	onCreate  func(*Database)
}

// NewCluster returns a cluster with no databases.
func NewCluster() *Cluster {
	return &Cluster{databases: map[string]*Database{}}
}

// FailCreate makes CreateDatabase fail with err until called with nil.
func (c *Cluster) FailCreate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createErr = err
}

// FailCreateLate makes the next CreateDatabase create the database and
// then return err, like a statement that timed out after the server
// applied it.
func (c *Cluster) FailCreateLate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lateErr = err
}

// Creates returns how many times CreateDatabase was called.
func (c *Cluster) Creates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// OnCreate registers fn to run on every database right after it is
// created, so tests can inject failures before tables are applied.
func (c *Cluster) OnCreate(fn func(*Database)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCreate = fn
}

// Get returns the named database or nil.
func (c *Cluster) Get(name string) *Database {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.databases[name]
}

func (c *Cluster) DatabaseExists(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.databases[name]
	return ok, nil
}

func (c *Cluster) CreateDatabase(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creates++
	if c.createErr != nil {
		return c.createErr
	}
	if _, ok := c.databases[name]; ok {
		return errs.Conflict("db.CreateDatabase", "database %q already exists", name)
	}
	d := NewDatabase(name)
	if c.onCreate != nil {
		c.onCreate(d)
	}
	c.databases[name] = d
	if err := c.lateErr; err != nil {
		c.lateErr = nil
		return err
	}
	return nil
}

func (c *Cluster) DropDatabase(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.databases, name)
	return nil
}

func (c *Cluster) Ping(ctx context.Context) error {
	return nil
}

func (c *Cluster) Database(ctx context.Context, name string) (store.TenantStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.databases[name]
	if !ok {
		return nil, errs.NotFound("store.Database", "database %q does not exist", name)
	}
	return d, nil
}
