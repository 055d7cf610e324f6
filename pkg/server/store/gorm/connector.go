package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

var _ store.Connector = (*Connector)(nil)

// Source hands out a cached handle per database name.
type Source interface {
	DB(ctx context.Context, name string) (*gorm.DB, error)
}

// Connector implements store.Connector on top of a connection cache.
type Connector struct {
	source Source
}

// NewConnector creates a new Connector
func NewConnector(source Source) *Connector {
	return &Connector{source: source}
}

func (c *Connector) Database(ctx context.Context, name string) (store.TenantStore, error) {
	db, err := c.source.DB(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewTenantStore(db, name), nil
}
