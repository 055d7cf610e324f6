package store

import "context"

// Cluster abstracts administrative operations on the database server that
// hosts tenant databases.
type Cluster interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	// DropDatabase removes name if it exists.
	DropDatabase(ctx context.Context, name string) error
	Ping(ctx context.Context) error
}
