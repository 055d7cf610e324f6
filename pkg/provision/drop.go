package provision

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/doodlesbykumbi/schoolhost/pkg/audit"
	"github.com/doodlesbykumbi/schoolhost/pkg/db"
	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/tenant"
)

// Drop removes the database of a cancelled or deleted tenant. The
// registry row keeps its database name. A tenant that was never marked
// ready has its derived database dropped when one exists.
func (p *Provisioner) Drop(ctx context.Context, tenantID int64, actor string) error {
	const op = "provision.Drop"

	unlock, ok := p.Locks.TryLock(tenant.LockKey(tenantID))
	if !ok {
		return &errs.Error{Code: errs.EConflict, Op: op, TenantID: tenantID, Msg: "tenant is being provisioned"}
	}
	defer unlock()

	var t *model.Tenant
	err := p.retry(ctx, func(ctx context.Context) error {
		var err error
		t, err = p.Registry.FindTenant(ctx, tenantID)
		return err
	})
	if err != nil {
		return errs.Wrap(op, tenantID, err)
	}
	if t.Status != model.TenantStatusCancelled && t.Status != model.TenantStatusDeleted {
		return &errs.Error{Code: errs.EConflict, Op: op, TenantID: tenantID, Msg: fmt.Sprintf("tenant is %s; cancel or delete it first", t.Status)}
	}
	name := t.Database()
	if !t.HasDatabase() {
		name = db.TenantDatabaseName(p.cfg.DatabasePrefix, tenantID)
		var exists bool
		err = p.retry(ctx, func(ctx context.Context) error {
			var err error
			exists, err = p.Cluster.DatabaseExists(ctx, name)
			return err
		})
		if err != nil {
			return errs.Wrap(op, tenantID, err)
		}
		if !exists {
			return &errs.Error{Code: errs.ENotFound, Op: op, TenantID: tenantID, Msg: "tenant has no database"}
		}
	}

	if p.Evictor != nil {
		if err := p.Evictor.Evict(name); err != nil {
			p.Logger.WithError(err).WithField("database", name).Warn("failed to close tenant connection")
		}
	}
	err = p.retry(ctx, func(ctx context.Context) error {
		return p.Cluster.DropDatabase(ctx, name)
	})

	event := audit.DatabaseDroppedEvent{TenantID: tenantID, Database: name, Actor: actor, Success: err == nil}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	p.Recorder.Record(ctx, nil, event)
	if err != nil {
		return errs.Wrap(op, tenantID, err)
	}
	p.Logger.WithFields(logrus.Fields{"tenant_id": tenantID, "database": name}).Warn("tenant database dropped")
	return nil
}
