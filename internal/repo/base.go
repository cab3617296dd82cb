package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Base carries the connection every inventory repository is bound to. Tx
// variants build a new Base around the transaction handle.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB scopes the connection to ctx. A nil ctx yields the bare handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Raw exposes the handle for callers that open their own transaction.
func (b Base) Raw() *gorm.DB {
	return b.db
}

// TakeOne runs q against a single T. A missing row is reported as nil, nil
// so callers can map absence onto their own not-found codes.
func TakeOne[T any](q *gorm.DB) (*T, error) {
	var row T
	err := q.Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
