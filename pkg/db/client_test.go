package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

type ledgerNote struct {
	ID   int
	Body string
}

func openClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(context.Background(), config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.DB().AutoMigrate(&ledgerNote{}))
	return client
}

func countNotes(t *testing.T, client *Client) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&ledgerNote{}).Count(&n).Error)
	return n
}

func TestNewRequiresDSN(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: config.DBDriverSQLite}, nil)
	assert.Error(t, err)
}

func TestWithTxCommitAndRollback(t *testing.T) {
	client := openClient(t)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerNote{Body: "kept"}).Error
	}))
	assert.EqualValues(t, 1, countNotes(t, client))

	boom := errors.New("boom")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerNote{Body: "dropped"}).Error)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 1, countNotes(t, client))
}

func TestWithSnapshotReadsAndDiscards(t *testing.T) {
	client := openClient(t)
	ctx := context.Background()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerNote{Body: "seen"}).Error
	}))

	var seen int64
	require.NoError(t, client.WithSnapshot(ctx, func(tx *gorm.DB) error {
		return tx.Model(&ledgerNote{}).Count(&seen).Error
	}))
	assert.EqualValues(t, 1, seen)

	boom := errors.New("boom")
	err := client.WithSnapshot(ctx, func(*gorm.DB) error { return boom })
	assert.ErrorIs(t, err, boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	called := false
	err = client.WithSnapshot(cancelled, func(*gorm.DB) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestWithTxPanicRollsBack(t *testing.T) {
	client := openClient(t)
	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerNote{Body: "panic"}).Error)
			panic("kaboom")
		})
	})
	assert.EqualValues(t, 0, countNotes(t, client))
}

func TestWithTxCancelledBeforeCommit(t *testing.T) {
	client := openClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerNote{Body: "cancelled"}).Error)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, countNotes(t, client))

	err = client.WithTx(ctx, func(*gorm.DB) error {
		t.Fatal("fn must not run on a dead context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPing(t *testing.T) {
	assert.NoError(t, openClient(t).Ping(context.Background()))
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf, Format: logger.FormatJSON})
	q := newQueryLogger(logg, time.Millisecond)

	q.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "SELECT 1")

	buf.Reset()
	q.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 2", 0 }, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	buf.Reset()
	q.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) { return "SELECT 3", 0 }, nil)
	assert.Empty(t, buf.String())
}

func TestQueryLoggerSkipsUniqueViolations(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: buf, Format: logger.FormatJSON})
	q := newQueryLogger(logg, time.Minute)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "ux_part_arrivals_package_line"}
	q.Trace(context.Background(), time.Now(), func() (string, int64) { return "INSERT INTO part_arrivals", 0 }, dup)
	assert.Empty(t, buf.String())

	q.Trace(context.Background(), time.Now(), func() (string, int64) { return "UPDATE active_inventory", 0 }, errors.New("connection reset"))
	assert.Contains(t, buf.String(), "query failed")
	assert.Contains(t, buf.String(), "UPDATE active_inventory")
}
