// Package session persists the tenant and user a client session is bound
// to. Only those two values are stored; everything else about a session
// belongs to the presentation layer.
package session

import (
	"context"

	"github.com/google/uuid"
)

// Values is what a session carries.
type Values struct {
	TenantID int64 `json:"tenant_id"`
	UserID   int64 `json:"user_id"`
}

// Store is the session backend.
type Store interface {
	// Get returns the values of session id. ok is false when the session
	// is unknown or expired.
	Get(ctx context.Context, id string) (v Values, ok bool, err error)

	// Bind writes v to session id and refreshes its expiry. A session
	// already bound to a different tenant is left untouched and Bind fails
	// with a conflict. The check and the write are one atomic step.
	Bind(ctx context.Context, id string, v Values) error

	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}
