package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

var _ store.TenantStore = (*Database)(nil)

// Database implements store.TenantStore for one in-memory tenant database.
// Only the tables the core reads and writes keep their rows; every other
// table keeps a row count.
type Database struct {
	name string

	// schemaMu serializes WithSchemaLock callers like the advisory lock does.
	schemaMu sync.Mutex

	mu            sync.Mutex
	tables        map[string]map[string]bool // table -> columns
	indexes       map[string]bool
	counts        map[string]int64
	naturalKeys   map[string]map[string]bool
	roles         map[string]int64
	users         []model.User
	usage         map[model.StorageCategory]*model.StorageUsage
	alerts        []model.SystemAlert
	rateLimits    map[string]model.RateLimitRecord
	auditLogs     []model.AuditLog
	securityLogs  []model.SecurityLog
	subscriptions []model.Subscription
	relaxedRuns   int

	failTables map[string]error
	failAdmin  error
	down       error
}

// NewDatabase returns an empty database.
func NewDatabase(name string) *Database {
	return &Database{
		name:        name,
		tables:      map[string]map[string]bool{},
		indexes:     map[string]bool{},
		counts:      map[string]int64{},
		naturalKeys: map[string]map[string]bool{},
		roles:       map[string]int64{},
		usage:       map[model.StorageCategory]*model.StorageUsage{},
		rateLimits:  map[string]model.RateLimitRecord{},
		failTables:  map[string]error{},
	}
}

// FailTable makes creating or upgrading table fail with err. A nil err
// clears the failure.
func (d *Database) FailTable(table string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.failTables, table)
		return
	}
	d.failTables[table] = err
}

// FailAdmin makes CreateAdmin fail with err.
func (d *Database) FailAdmin(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failAdmin = err
}

// SetUnavailable makes every data call fail with err.
func (d *Database) SetUnavailable(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = err
}

// DropTable removes a table, as if the database predated it.
func (d *Database) DropTable(table string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tables, table)
	delete(d.counts, table)
	delete(d.naturalKeys, table)
	if table == "storage_usage" {
		d.usage = map[model.StorageCategory]*model.StorageUsage{}
	}
}

// HasColumn reports whether table has column.
func (d *Database) HasColumn(table, column string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tables[table][column]
}

// RelaxedRuns counts schema lock sections that ran with integrity relaxed.
func (d *Database) RelaxedRuns() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.relaxedRuns
}

// Alerts returns a copy of every alert, resolved or not.
func (d *Database) Alerts() []model.SystemAlert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.SystemAlert(nil), d.alerts...)
}

// AuditLogs returns a copy of the audit log.
func (d *Database) AuditLogs() []model.AuditLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.AuditLog(nil), d.auditLogs...)
}

// SecurityLogs returns a copy of the security log.
func (d *Database) SecurityLogs() []model.SecurityLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.SecurityLog(nil), d.securityLogs...)
}

// Subscriptions returns a copy of the subscription rows.
func (d *Database) Subscriptions() []model.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Subscription(nil), d.subscriptions...)
}

// Users returns a copy of the user rows.
func (d *Database) Users() []model.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.User(nil), d.users...)
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) CheckConnectivity(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.down
}

func (d *Database) missing(op, table string) error {
	return errs.NotFound(op, "relation %q does not exist", table)
}

func (d *Database) ListTables(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return nil, d.down
	}
	names := make([]string, 0, len(d.tables))
	for name := range d.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *Database) CreateTable(ctx context.Context, table schema.Table) error {
	return d.apply(table, false)
}

func (d *Database) UpgradeTable(ctx context.Context, table schema.Table) error {
	return d.apply(table, true)
}

func (d *Database) apply(table schema.Table, addColumns bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if err := d.failTables[table.Name]; err != nil {
		return errs.Classify("store.CreateTable", fmt.Errorf("%s: %w", table.Name, err))
	}

	cols, exists := d.tables[table.Name]
	if !exists {
		cols = map[string]bool{}
		for _, c := range table.Columns {
			cols[c.Name] = true
		}
		d.tables[table.Name] = cols
	} else if addColumns {
		for _, c := range table.Columns {
			cols[c.Name] = true
		}
	}
	for _, stmt := range table.IndexStatements() {
		d.indexes[stmt] = true
	}
	return nil
}

func (d *Database) Seed(ctx context.Context, seed schema.Seed) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return 0, d.down
	}
	if _, ok := d.tables[seed.Table]; !ok {
		return 0, d.missing("store.Seed", seed.Table)
	}

	keyIdx := make([]int, 0, len(seed.Conflict))
	for _, c := range seed.Conflict {
		for i, col := range seed.Columns {
			if col == c {
				keyIdx = append(keyIdx, i)
			}
		}
	}
	if d.naturalKeys[seed.Table] == nil {
		d.naturalKeys[seed.Table] = map[string]bool{}
	}

	var inserted int64
	for _, row := range seed.Rows {
		parts := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			parts[i] = fmt.Sprint(row[idx])
		}
		key := strings.Join(parts, "\x00")
		if d.naturalKeys[seed.Table][key] {
			continue
		}
		d.naturalKeys[seed.Table][key] = true
		d.counts[seed.Table]++
		inserted++
		if seed.Table == "roles" {
			d.roles[fmt.Sprint(row[0])] = int64(len(d.roles) + 1)
		}
	}
	return inserted, nil
}

func (d *Database) CountRows(ctx context.Context, table string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return 0, d.down
	}
	if _, ok := d.tables[table]; !ok {
		return 0, d.missing("store.CountRows", table)
	}
	return d.counts[table], nil
}

func (d *Database) WithSchemaLock(ctx context.Context, relaxIntegrity bool, fn func(store.SchemaStore) error) error {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	if relaxIntegrity {
		d.mu.Lock()
		d.relaxedRuns++
		d.mu.Unlock()
	}
	return fn(d)
}

func (d *Database) CreateAdmin(ctx context.Context, user *model.User, roleName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if d.failAdmin != nil {
		return d.failAdmin
	}
	if _, ok := d.tables["users"]; !ok {
		return d.missing("store.CreateAdmin", "users")
	}
	roleID, ok := d.roles[roleName]
	if !ok {
		return errs.NotFound("store.CreateAdmin", "role %q not found", roleName)
	}
	for _, u := range d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return errs.Conflict("store.CreateAdmin", "email %q is taken", user.Email)
		}
	}
	user.RoleID = roleID
	user.ID = int64(len(d.users) + 1)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	d.users = append(d.users, *user)
	d.counts["users"]++
	return nil
}

func (d *Database) CountUsersWithRole(ctx context.Context, roleName string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return 0, d.down
	}
	roleID, ok := d.roles[roleName]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, u := range d.users {
		if u.RoleID == roleID {
			n++
		}
	}
	return n, nil
}

func (d *Database) InitStorageUsage(ctx context.Context, limits map[model.StorageCategory]int64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if _, ok := d.tables["storage_usage"]; !ok {
		return d.missing("store.InitStorageUsage", "storage_usage")
	}
	for _, category := range model.Categories() {
		if _, ok := d.usage[category]; ok {
			continue
		}
		d.usage[category] = &model.StorageUsage{
			ID:             int64(len(d.usage) + 1),
			Category:       category,
			LimitBytes:     limits[category],
			LastCalculated: at,
		}
		d.counts["storage_usage"]++
	}
	return nil
}

func (d *Database) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.down != nil {
		return d.down
	}
	if _, ok := d.tables["subscriptions"]; !ok {
		return d.missing("store.CreateSubscription", "subscriptions")
	}
	sub.ID = int64(len(d.subscriptions) + 1)
	d.subscriptions = append(d.subscriptions, *sub)
	d.counts["subscriptions"]++
	return nil
}
