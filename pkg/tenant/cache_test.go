package tenant

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/model"
)

func TestCache(t *testing.T) {
	clk := clock.NewMock()
	c, err := NewCache(4, time.Minute, clk)
	require.NoError(t, err)

	c.Add(&model.Tenant{ID: 1, Slug: "greenfield", Status: model.TenantStatusActive})
	got, ok := c.BySlug("greenfield")
	require.True(t, ok)
	assert.EqualValues(t, 1, got.ID)
	_, ok = c.ByID(1)
	assert.True(t, ok)

	t.Run("deleted tenants are not cached", func(t *testing.T) {
		c.Add(&model.Tenant{ID: 2, Slug: "gone", Status: model.TenantStatusDeleted})
		_, ok := c.BySlug("gone")
		assert.False(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		clk.Add(time.Minute)
		_, ok := c.BySlug("greenfield")
		assert.False(t, ok)
	})

	t.Run("size bound", func(t *testing.T) {
		c.Purge()
		for i := int64(1); i <= 3; i++ {
			c.Add(&model.Tenant{ID: i, Slug: string(rune('a' + i)), Status: model.TenantStatusActive})
		}
		assert.Equal(t, 4, c.Len())
		_, ok := c.ByID(1)
		assert.False(t, ok)
	})

	t.Run("invalidate", func(t *testing.T) {
		tenant := &model.Tenant{ID: 9, Slug: "nine", Status: model.TenantStatusTrial}
		c.Add(tenant)
		c.Invalidate(tenant)
		_, ok := c.ByID(9)
		assert.False(t, ok)
	})
}
