package purchasing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/assetledger/internal/repo"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
)

// Repository persists purchase order headers, lines and demand links.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateHeader(ctx context.Context, header *models.PurchaseOrderHeader) error
	FindHeader(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderHeader, error)
	FindHeaderForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderHeader, error)
	FindHeaderForShare(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderHeader, error)
	TransitionHeader(ctx context.Context, id uuid.UUID, from, to enums.PurchaseOrderStatus, closedAt *time.Time) (bool, error)

	CreateLine(ctx context.Context, line *models.PurchaseOrderLine) error
	FindLine(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderLine, error)
	ListLines(ctx context.Context, headerID uuid.UUID) ([]models.PurchaseOrderLine, error)
	AddLinked(ctx context.Context, lineID uuid.UUID, qty int) (bool, error)
	AddReceived(ctx context.Context, lineID uuid.UUID, qty int, ceiling *int) (bool, error)

	CreateDemandLink(ctx context.Context, link *models.PartDemandPurchaseOrderLine) error
	ListDemandLinks(ctx context.Context, lineID uuid.UUID) ([]models.PartDemandPurchaseOrderLine, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a purchasing repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) CreateHeader(ctx context.Context, header *models.PurchaseOrderHeader) error {
	return r.DB(ctx).Create(header).Error
}

// FindHeader returns nil, nil when the header does not exist.
func (r *repository) FindHeader(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderHeader, error) {
	return r.findHeader(r.DB(ctx), id)
}

// FindHeaderForUpdate row-locks the header on Postgres so line inserts and
// closes against it serialize.
func (r *repository) FindHeaderForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderHeader, error) {
	return r.findHeader(r.locked(ctx, clause.LockingStrengthUpdate), id)
}

// FindHeaderForShare takes a shared row lock on Postgres: arrivals on one
// header run side by side but wait for, and block, a close.
func (r *repository) FindHeaderForShare(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderHeader, error) {
	return r.findHeader(r.locked(ctx, clause.LockingStrengthShare), id)
}

func (r *repository) locked(ctx context.Context, strength string) *gorm.DB {
	q := r.DB(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: strength})
	}
	return q
}

func (r *repository) findHeader(q *gorm.DB, id uuid.UUID) (*models.PurchaseOrderHeader, error) {
	return repo.TakeOne[models.PurchaseOrderHeader](q.Where("id = ?", id))
}

// TransitionHeader moves a header from one status to another; false means
// the header was no longer in the from status.
func (r *repository) TransitionHeader(ctx context.Context, id uuid.UUID, from, to enums.PurchaseOrderStatus, closedAt *time.Time) (bool, error) {
	res := r.DB(ctx).
		Model(&models.PurchaseOrderHeader{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"closed_at":  closedAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateLine(ctx context.Context, line *models.PurchaseOrderLine) error {
	return r.DB(ctx).Create(line).Error
}

// FindLine returns nil, nil when the line does not exist.
func (r *repository) FindLine(ctx context.Context, id uuid.UUID) (*models.PurchaseOrderLine, error) {
	return repo.TakeOne[models.PurchaseOrderLine](r.DB(ctx).Where("id = ?", id))
}

func (r *repository) ListLines(ctx context.Context, headerID uuid.UUID) ([]models.PurchaseOrderLine, error) {
	var lines []models.PurchaseOrderLine
	err := r.DB(ctx).
		Where("header_id = ?", headerID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// AddLinked reserves qty on the line only while the total stays within the
// ordered quantity.
func (r *repository) AddLinked(ctx context.Context, lineID uuid.UUID, qty int) (bool, error) {
	res := r.DB(ctx).
		Model(&models.PurchaseOrderLine{}).
		Where("id = ? AND linked_qty + ? <= ordered_qty", lineID, qty).
		Updates(map[string]any{
			"linked_qty": gorm.Expr("linked_qty + ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddReceived increments received_qty. A non-nil ceiling caps the result.
func (r *repository) AddReceived(ctx context.Context, lineID uuid.UUID, qty int, ceiling *int) (bool, error) {
	q := r.DB(ctx).Model(&models.PurchaseOrderLine{}).Where("id = ?", lineID)
	if ceiling != nil {
		q = q.Where("received_qty + ? <= ?", qty, *ceiling)
	}
	res := q.Updates(map[string]any{
		"received_qty": gorm.Expr("received_qty + ?", qty),
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateDemandLink(ctx context.Context, link *models.PartDemandPurchaseOrderLine) error {
	return r.DB(ctx).Create(link).Error
}

func (r *repository) ListDemandLinks(ctx context.Context, lineID uuid.UUID) ([]models.PartDemandPurchaseOrderLine, error) {
	var links []models.PartDemandPurchaseOrderLine
	err := r.DB(ctx).
		Where("line_id = ?", lineID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&links).Error
	return links, err
}
