package gorm

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
	"github.com/doodlesbykumbi/schoolhost/pkg/model"
	"github.com/doodlesbykumbi/schoolhost/pkg/schema"
	"github.com/doodlesbykumbi/schoolhost/pkg/server/store"
)

func TestTenantStore_CreateTable(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewTenantStore(db, "school_42")
	users, _ := schema.Lookup("users")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS users (")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_users_role_id ON users (role_id)")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.CreateTable(context.Background(), users))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStore_WithSchemaLock(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewTenantStore(db, "school_42")
	roles, _ := schema.Lookup("roles")
	events, _ := schema.Lookup("events")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(schemaLockID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL session_replication_role = replica")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_roles")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS roles (")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("RELEASE SAVEPOINT sp_roles")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta("SAVEPOINT sp_events")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS events (")).WillReturnError(errors.New("permission denied"))
	mock.ExpectExec(regexp.QuoteMeta("ROLLBACK TO SAVEPOINT sp_events")).WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL session_replication_role = DEFAULT")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	var outcomes schema.Outcomes
	err := s.WithSchemaLock(context.Background(), true, func(tx store.SchemaStore) error {
		for _, table := range []schema.Table{roles, events} {
			outcomes = append(outcomes, schema.Outcome{Table: table.Name, Err: tx.UpgradeTable(context.Background(), table)})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"events"}, outcomes.Failed().Tables())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStore_Seed(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewTenantStore(db, "school_42")
	seed := schema.DefaultSeeds()[0]

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roles (name, display_name, description, is_system) VALUES")).
		WillReturnResult(sqlmock.NewResult(0, 7))
	n, err := s.Seed(context.Background(), seed)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roles")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = s.Seed(context.Background(), seed)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestTenantStore_CountRowsRejectsUnknownTables(t *testing.T) {
	db, _ := setupTestDB(t)
	s := NewTenantStore(db, "school_42")

	_, err := s.CountRows(context.Background(), "roles; DROP TABLE users")
	assert.True(t, errs.Is(err, errs.EInvalid))
}

func TestTenantStore_CreateAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("binds the role", func(t *testing.T) {
		db, mock := setupTestDB(t)
		s := NewTenantStore(db, "school_42")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM roles WHERE name = $1")).
			WithArgs("school_admin").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		user := &model.User{Name: "A. Admin", Email: "a@x.test", Status: "active"}
		require.NoError(t, s.CreateAdmin(ctx, user, "school_admin"))
		assert.EqualValues(t, 2, user.RoleID)
		assert.EqualValues(t, 1, user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing role", func(t *testing.T) {
		db, mock := setupTestDB(t)
		s := NewTenantStore(db, "school_42")

		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM roles WHERE name = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		err := s.CreateAdmin(ctx, &model.User{}, "school_admin")
		assert.True(t, errs.Is(err, errs.ENotFound))
	})
}

func TestTenantStore_InitStorageUsage(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewTenantStore(db, "school_42")
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO storage_usage (category, used_bytes, limit_bytes, last_calculated) VALUES ($1, 0, $2, $3), ($4, 0, $5, $6)")).
		WithArgs(
			"database", int64(40), at,
			"files", int64(30), at,
			"backups", int64(20), at,
			"attachments", int64(10), at,
		).
		WillReturnResult(sqlmock.NewResult(0, 4))

	err := s.InitStorageUsage(context.Background(), map[model.StorageCategory]int64{
		model.CategoryDatabase:    40,
		model.CategoryFiles:       30,
		model.CategoryBackups:     20,
		model.CategoryAttachments: 10,
	}, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantStore_AddUsage(t *testing.T) {
	at := time.Now()
	usageColumns := []string{"id", "category", "used_bytes", "limit_bytes", "last_calculated"}

	t.Run("guarded positive delta", func(t *testing.T) {
		db, mock := setupTestDB(t)
		s := NewTenantStore(db, "school_42")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO storage_usage")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE storage_usage SET used_bytes = GREATEST(used_bytes + $1, 0), limit_bytes = $2, last_calculated = $3 WHERE category = $4 AND used_bytes + $5 <= $6")).
			WithArgs(int64(50), int64(100), at, "files", int64(50), int64(100)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "storage_usage" WHERE category = $1`)).
			WillReturnRows(sqlmock.NewRows(usageColumns).AddRow(1, "files", 80, 100, at))
		mock.ExpectCommit()

		applied, usage, err := s.AddUsage(context.Background(), model.CategoryFiles, 50, 100, at)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.EqualValues(t, 80, usage.UsedBytes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative delta is unguarded", func(t *testing.T) {
		db, mock := setupTestDB(t)
		s := NewTenantStore(db, "school_42")

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO storage_usage")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE storage_usage SET .* WHERE category = \$4$`).
			WithArgs(int64(-50), int64(100), at, "files").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "storage_usage" WHERE category = $1`)).
			WillReturnRows(sqlmock.NewRows(usageColumns).AddRow(1, "files", 30, 100, at))
		mock.ExpectCommit()

		applied, usage, err := s.AddUsage(context.Background(), model.CategoryFiles, -50, 100, at)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.EqualValues(t, 30, usage.UsedBytes)
	})
}

func TestTenantStore_Alerts(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewTenantStore(db, "school_42")
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "system_alerts" WHERE alert_type = $1 AND severity = $2 AND resolved = $3`)).
		WithArgs("storage_files", "warning", false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	alert, err := s.OpenAlert(ctx, "storage_files", "warning")
	require.NoError(t, err)
	assert.Nil(t, alert)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE system_alerts SET resolved = $1, resolved_at = $2 WHERE alert_type = $3 AND resolved = $4")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := s.ResolveAlerts(ctx, "storage_files", time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestTenantStore_SaveRateLimit(t *testing.T) {
	db, mock := setupTestDB(t)
	s := NewTenantStore(db, "school_42")
	now := time.Now()

	mock.ExpectExec(`INSERT INTO rate_limits .* ON CONFLICT \(endpoint, client_id\) DO UPDATE`).
		WithArgs("/api/students", "10.0.0.1", 3, now, now.Add(time.Minute), false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.SaveRateLimit(context.Background(), model.RateLimitRecord{
		Endpoint:     "/api/students",
		ClientID:     "10.0.0.1",
		RequestCount: 3,
		WindowStart:  now,
		WindowEnd:    now.Add(time.Minute),
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
