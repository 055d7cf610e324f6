package tenant

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

// Cache is the process wide tenant lookup cache. Tenants are stored under
// both their slug and their id. Entries leave the cache when they fall off
// the LRU or when their TTL runs out, whichever comes first.
type Cache struct {
	lru   *lru.Cache
	ttl   time.Duration
	clock clock.Clock
}

type cacheEntry struct {
	tenant    model.Tenant
	expiresAt time.Time
}

// NewCache returns a cache holding at most size entries for ttl each.
func NewCache(size int, ttl time.Duration, clk clock.Clock) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("tenant cache: %w", err)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Cache{lru: l, ttl: ttl, clock: clk}, nil
}

func slugKey(slug string) string { return "slug:" + slug }
func idKey(id int64) string      { return fmt.Sprintf("id:%d", id) }

// BySlug returns the cached tenant with the given slug.
func (c *Cache) BySlug(slug string) (*model.Tenant, bool) {
	return c.get(slugKey(slug))
}

// ByID returns the cached tenant with the given id.
func (c *Cache) ByID(id int64) (*model.Tenant, bool) {
	return c.get(idKey(id))
}

func (c *Cache) get(key string) (*model.Tenant, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if c.ttl > 0 && !c.clock.Now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	t := entry.tenant
	return &t, true
}

// Add caches t under its slug and id. Deleted tenants are never cached.
func (c *Cache) Add(t *model.Tenant) {
	if t == nil || t.Status == model.TenantStatusDeleted {
		return
	}
	entry := cacheEntry{tenant: *t, expiresAt: c.clock.Now().Add(c.ttl)}
	c.lru.Add(slugKey(t.Slug), entry)
	c.lru.Add(idKey(t.ID), entry)
}

// Invalidate drops t from the cache, e.g. after a status change.
func (c *Cache) Invalidate(t *model.Tenant) {
	if t == nil {
		return
	}
	c.lru.Remove(slugKey(t.Slug))
	c.lru.Remove(idKey(t.ID))
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len returns the number of cache entries. A tenant counts twice.
func (c *Cache) Len() int {
	return c.lru.Len()
}
