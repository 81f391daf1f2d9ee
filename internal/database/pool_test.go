package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockPool(t *testing.T, cfg Config) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	pool, err := NewPool(gormDB, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool, mock
}

func TestNewPoolRequiresDB(t *testing.T) {
	_, err := NewPool(nil, Config{}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, defaultMaxIdleConns, cfg.MaxIdleConns)
	assert.Equal(t, defaultMaxOpenConns, cfg.MaxOpenConns)
	assert.Equal(t, defaultConnMaxLifetime, cfg.ConnMaxLifetime)
	assert.Equal(t, defaultProbeInterval, cfg.HealthCheckInterval)

	tuned := Config{MaxIdleConns: 2, MaxOpenConns: 7, ConnMaxLifetime: time.Minute, HealthCheckInterval: time.Second}.withDefaults()
	assert.Equal(t, 2, tuned.MaxIdleConns)
	assert.Equal(t, 7, tuned.MaxOpenConns)
}

func TestPoolPing(t *testing.T) {
	pool, mock := newMockPool(t, Config{HealthCheckInterval: time.Hour})

	mock.ExpectPing()
	assert.NoError(t, pool.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, pool.Ping(context.Background()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolWithTransactionCommits(t *testing.T) {
	pool, mock := newMockPool(t, Config{HealthCheckInterval: time.Hour})

	mock.ExpectBegin()
	mock.ExpectCommit()

	ran := false
	err := pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		ran = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolWithTransactionRollsBackOnError(t *testing.T) {
	pool, mock := newMockPool(t, Config{HealthCheckInterval: time.Hour})

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := pool.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool, mock := newMockPool(t, Config{HealthCheckInterval: time.Hour})
	mock.ExpectClose()

	assert.NoError(t, pool.Close())
	assert.NoError(t, pool.Close())
}
