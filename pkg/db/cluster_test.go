package db

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
)

func newMockCluster(t *testing.T) (*Cluster, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewCluster(mockDB, time.Second), mock
}

func TestCluster_DatabaseExists(t *testing.T) {
	cluster, mock := newMockCluster(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`)).
		WithArgs("school_42").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := cluster.DatabaseExists(context.Background(), "school_42")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCluster_CreateDatabase(t *testing.T) {
	t.Run("quotes the identifier", func(t *testing.T) {
		cluster, mock := newMockCluster(t)
		mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "school_42"`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, cluster.CreateDatabase(context.Background(), "school_42"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate database is a conflict", func(t *testing.T) {
		cluster, mock := newMockCluster(t)
		mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "school_42"`)).
			WillReturnError(&pq.Error{Code: "42P04", Message: `database "school_42" already exists`})

		err := cluster.CreateDatabase(context.Background(), "school_42")
		assert.True(t, errs.Is(err, errs.EConflict))
	})

	t.Run("connection failure is unavailable", func(t *testing.T) {
		cluster, mock := newMockCluster(t)
		mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE "school_42"`)).
			WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

		err := cluster.CreateDatabase(context.Background(), "school_42")
		assert.True(t, errs.Retryable(err))
	})
}

func TestCluster_DropDatabase(t *testing.T) {
	cluster, mock := newMockCluster(t)

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_terminate_backend(pid) FROM pg_stat_activity`)).
		WithArgs("school_42").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DROP DATABASE IF EXISTS "school_42"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, cluster.DropDatabase(context.Background(), "school_42"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCluster_Ping(t *testing.T) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockDB.Close()
	cluster := NewCluster(mockDB, time.Second)

	mock.ExpectPing().WillReturnError(errors.New("boom"))
	assert.Error(t, cluster.Ping(context.Background()))

	mock.ExpectPing()
	assert.NoError(t, cluster.Ping(context.Background()))
}
