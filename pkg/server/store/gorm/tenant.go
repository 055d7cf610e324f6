package gorm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

// Ensure TenantStore implements store.TenantStore
var _ store.TenantStore = (*TenantStore)(nil)

// schemaLockID keys the advisory lock held while a tenant database is
// being migrated. Advisory locks are scoped to the current database.
const schemaLockID = 7341902

// TenantStore implements store.TenantStore on one tenant database.
type TenantStore struct {
	*HealthStore
	db   *gorm.DB
	name string
	// inTx is set for the store handed to WithSchemaLock callbacks; table
	// operations then run under savepoints.
	inTx bool
}

// NewTenantStore creates a new TenantStore
func NewTenantStore(db *gorm.DB, name string) *TenantStore {
	return &TenantStore{HealthStore: NewHealthStore(db), db: db, name: name}
}

func (s *TenantStore) Name() string {
	return s.name
}

func (s *TenantStore) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).Raw(`
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`).Scan(&names).Error
	if err != nil {
		return nil, errs.Classify("store.ListTables", err)
	}
	return names, nil
}

func (s *TenantStore) CreateTable(ctx context.Context, table schema.Table) error {
	stmts := append([]string{table.CreateStatement()}, table.IndexStatements()...)
	return s.isolated(ctx, "store.CreateTable", table.Name, func(db *gorm.DB) error {
		return execAll(db, stmts)
	})
}

func (s *TenantStore) UpgradeTable(ctx context.Context, table schema.Table) error {
	return s.isolated(ctx, "store.UpgradeTable", table.Name, func(db *gorm.DB) error {
		return execAll(db, table.Statements())
	})
}

func (s *TenantStore) Seed(ctx context.Context, seed schema.Seed) (int64, error) {
	stmt, args := seed.InsertStatement()
	var inserted int64
	err := s.isolated(ctx, "store.Seed", seed.Table, func(db *gorm.DB) error {
		res := db.Exec(stmt, args...)
		inserted = res.RowsAffected
		return res.Error
	})
	return inserted, err
}

func (s *TenantStore) CountRows(ctx context.Context, table string) (int64, error) {
	if _, ok := schema.Lookup(table); !ok {
		return 0, errs.Invalid("store.CountRows", "unknown table %q", table)
	}
	var n int64
	if err := s.db.WithContext(ctx).Raw("SELECT count(*) FROM " + table).Scan(&n).Error; err != nil {
		return 0, errs.Classify("store.CountRows", err)
	}
	return n, nil
}

func (s *TenantStore) WithSchemaLock(ctx context.Context, relaxIntegrity bool, fn func(store.SchemaStore) error) error {
	if s.inTx {
		return fn(s)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", schemaLockID).Error; err != nil {
			return err
		}
		if relaxIntegrity {
			if err := tx.Exec("SET LOCAL session_replication_role = replica").Error; err != nil {
				return err
			}
		}
		if err := fn(&TenantStore{HealthStore: NewHealthStore(tx), db: tx, name: s.name, inTx: true}); err != nil {
			return err
		}
		if relaxIntegrity {
			return tx.Exec("SET LOCAL session_replication_role = DEFAULT").Error
		}
		return nil
	})
	return errs.Classify("store.WithSchemaLock", err)
}

// isolated runs fn so that its failure cannot poison the surrounding
// transaction. Outside a transaction every statement commits on its own.
func (s *TenantStore) isolated(ctx context.Context, op, table string, fn func(db *gorm.DB) error) error {
	db := s.db.WithContext(ctx)
	if !s.inTx {
		if err := fn(db); err != nil {
			return errs.Classify(op, fmt.Errorf("%s: %w", table, err))
		}
		return nil
	}

	savepoint := "sp_" + table
	if err := db.Exec("SAVEPOINT " + savepoint).Error; err != nil {
		return errs.Classify(op, err)
	}
	if err := fn(db); err != nil {
		if rbErr := db.Exec("ROLLBACK TO SAVEPOINT " + savepoint).Error; rbErr != nil {
			return errs.Classify(op, rbErr)
		}
		return errs.Classify(op, fmt.Errorf("%s: %w", table, err))
	}
	return errs.Classify(op, db.Exec("RELEASE SAVEPOINT "+savepoint).Error)
}

func execAll(db *gorm.DB, stmts []string) error {
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *TenantStore) CreateAdmin(ctx context.Context, user *model.User, roleName string) error {
	const op = "store.CreateAdmin"
	db := s.db.WithContext(ctx)

	var roleID int64
	if err := db.Raw(`SELECT id FROM roles WHERE name = ?`, roleName).Scan(&roleID).Error; err != nil {
		return errs.Classify(op, err)
	}
	if roleID == 0 {
		return errs.NotFound(op, "role %q not found", roleName)
	}

	user.RoleID = roleID
	if err := db.Create(user).Error; err != nil {
		return errs.Classify(op, err)
	}
	return nil
}

func (s *TenantStore) CountUsersWithRole(ctx context.Context, roleName string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT count(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.name = ?`, roleName,
	).Scan(&n).Error
	if err != nil {
		return 0, errs.Classify("store.CountUsersWithRole", err)
	}
	return n, nil
}

func (s *TenantStore) InitStorageUsage(ctx context.Context, limits map[model.StorageCategory]int64, at time.Time) error {
	categories := model.Categories()
	values := make([]string, len(categories))
	args := make([]interface{}, 0, 3*len(categories))
	for i, category := range categories {
		values[i] = "(?, 0, ?, ?)"
		args = append(args, string(category), limits[category], at)
	}

	stmt := fmt.Sprintf(
		`INSERT INTO storage_usage (category, used_bytes, limit_bytes, last_calculated) VALUES %s ON CONFLICT (category) DO NOTHING`,
		strings.Join(values, ", "),
	)
	return errs.Classify("store.InitStorageUsage", s.db.WithContext(ctx).Exec(stmt, args...).Error)
}

func (s *TenantStore) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	return errs.Classify("store.CreateSubscription", s.db.WithContext(ctx).Create(sub).Error)
}
