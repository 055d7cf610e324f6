package tenant

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/session"
)

// Binder ties a client session to a tenant and user.
type Binder struct {
	finder   Finder
	sessions session.Store
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// NewBinder creates a new Binder
func NewBinder(finder Finder, sessions session.Store, timeout time.Duration, logger logrus.FieldLogger) *Binder {
	return &Binder{finder: finder, sessions: sessions, timeout: timeout, logger: logger}
}

// Bind records tenantID and userID on the session. The tenant must exist
// and not be deleted, and a session never moves between tenants.
func (b *Binder) Bind(ctx context.Context, sessionID string, tenantID, userID int64) error {
	const op = "tenant.Bind"
	if sessionID == "" {
		return errs.Invalid(op, "session id is required")
	}
	if tenantID <= 0 {
		return errs.Invalid(op, "tenant id must be positive")
	}

	ctx, cancel := db.WithTimeout(ctx, b.timeout)
	defer cancel()

	t, err := b.finder.FindTenant(ctx, tenantID)
	if err != nil {
		return errs.Wrap(op, tenantID, err)
	}
	if t.Status == model.TenantStatusDeleted {
		return &errs.Error{Code: errs.ENotFound, Op: op, TenantID: tenantID, Msg: "tenant is deleted"}
	}

	if err := b.sessions.Bind(ctx, sessionID, session.Values{TenantID: tenantID, UserID: userID}); err != nil {
		return errs.Wrap(op, tenantID, err)
	}
	b.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "user_id": userID}).Debug("session bound")
	return nil
}

// Unbind forgets the session.
func (b *Binder) Unbind(ctx context.Context, sessionID string) error {
	if err := b.sessions.Delete(ctx, sessionID); err != nil {
		return errs.Wrap("tenant.Unbind", 0, err)
	}
	return nil
}
