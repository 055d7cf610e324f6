package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{Conn: mockDB, PreferSimpleProtocol: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	return gormDB, mock
}

func TestConnectionsOpenOncePerName(t *testing.T) {
	var opens int32
	conns := NewConnections(func(ctx context.Context, name string) (*gorm.DB, error) {
		atomic.AddInt32(&opens, 1)
		db, mock := openMock(t)
		mock.ExpectClose()
		return db, nil
	}, nil)

	var wg sync.WaitGroup
	handles := make([]*gorm.DB, 16)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := conns.DB(context.Background(), "school_42")
			assert.NoError(t, err)
			handles[i] = db
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, opens)
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}

	_, err := conns.DB(context.Background(), "school_43")
	require.NoError(t, err)
	assert.EqualValues(t, 2, opens)
	assert.Equal(t, 2, conns.Len())

	require.NoError(t, conns.Evict("school_42"))
	assert.Equal(t, 1, conns.Len())
	require.NoError(t, conns.Close())
	assert.Equal(t, 0, conns.Len())
}

func TestConnectionsFailedOpenNotCached(t *testing.T) {
	var opens int32
	conns := NewConnections(func(ctx context.Context, name string) (*gorm.DB, error) {
		if atomic.AddInt32(&opens, 1) == 1 {
			return nil, errors.New("connection refused")
		}
		db, _ := openMock(t)
		return db, nil
	}, nil)

	_, err := conns.DB(context.Background(), "school_42")
	require.Error(t, err)
	assert.Equal(t, 0, conns.Len())

	db, err := conns.DB(context.Background(), "school_42")
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.EqualValues(t, 2, opens)
}
