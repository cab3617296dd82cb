package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Code string
}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))
	return conn
}

type ctxKey struct{}

func TestBaseDBBindsContext(t *testing.T) {
	conn := openMemory(t)
	base := NewBase(conn)

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	scoped := base.DB(ctx)
	require.NotNil(t, scoped.Statement)
	assert.Equal(t, ctx, scoped.Statement.Context)

	//nolint:staticcheck // nil context returns the bare handle
	assert.Same(t, conn, base.DB(nil))
	assert.Same(t, conn, base.Raw())
}

func TestTakeOne(t *testing.T) {
	conn := openMemory(t)
	require.NoError(t, conn.Create(&widget{Code: "A-1"}).Error)

	got, err := TakeOne[widget](conn.Where("code = ?", "A-1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "A-1", got.Code)

	missing, err := TakeOne[widget](conn.Where("code = ?", "nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTakeOnePropagatesQueryErrors(t *testing.T) {
	conn := openMemory(t)
	_, err := TakeOne[widget](conn.Table("no_such_table"))
	assert.Error(t, err)
}
