package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/internal/repo"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/pagination"
)

// Repository persists inventory rows and the movement journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, partID, locationID string) (*models.ActiveInventory, error)
	Insert(ctx context.Context, row *models.ActiveInventory) error
	UpdateVersioned(ctx context.Context, row *models.ActiveInventory, expectedVersion int) (bool, error)
	ListByPart(ctx context.Context, partID string) ([]models.ActiveInventory, error)
	List(ctx context.Context) ([]models.ActiveInventory, error)

	InsertMovement(ctx context.Context, movement *models.InventoryMovement) error
	FindMovement(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error)
	FindReversal(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error)
	ListMovementsByPart(ctx context.Context, partID string) ([]models.InventoryMovement, error)
	ListMovementsPage(ctx context.Context, partID string, after *pagination.Cursor, limit int) ([]models.InventoryMovement, error)
	ListMovements(ctx context.Context) ([]models.InventoryMovement, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// Find returns nil, nil when the row does not exist.
func (r *repository) Find(ctx context.Context, partID, locationID string) (*models.ActiveInventory, error) {
	return repo.TakeOne[models.ActiveInventory](r.DB(ctx).
		Where("part_id = ? AND location_id = ?", partID, locationID))
}

func (r *repository) Insert(ctx context.Context, row *models.ActiveInventory) error {
	return r.DB(ctx).Create(row).Error
}

// UpdateVersioned writes qty and status only if the stored version still
// matches; false means another writer got there first.
func (r *repository) UpdateVersioned(ctx context.Context, row *models.ActiveInventory, expectedVersion int) (bool, error) {
	res := r.DB(ctx).
		Model(&models.ActiveInventory{}).
		Where("part_id = ? AND location_id = ? AND version = ?", row.PartID, row.LocationID, expectedVersion).
		Updates(map[string]any{
			"qty":         row.Qty,
			"status_name": row.StatusName,
			"version":     expectedVersion + 1,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected != 1 {
		return false, nil
	}
	row.Version = expectedVersion + 1
	return true, nil
}

func (r *repository) ListByPart(ctx context.Context, partID string) ([]models.ActiveInventory, error) {
	var rows []models.ActiveInventory
	err := r.DB(ctx).
		Where("part_id = ?", partID).
		Order("location_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) List(ctx context.Context) ([]models.ActiveInventory, error) {
	var rows []models.ActiveInventory
	err := r.DB(ctx).
		Order("part_id ASC").
		Order("location_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) InsertMovement(ctx context.Context, movement *models.InventoryMovement) error {
	return r.DB(ctx).Create(movement).Error
}

// FindMovement returns nil, nil when the movement does not exist.
func (r *repository) FindMovement(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error) {
	return repo.TakeOne[models.InventoryMovement](r.DB(ctx).Where("id = ?", id))
}

// FindReversal returns the movement that reverses id, or nil, nil.
func (r *repository) FindReversal(ctx context.Context, id uuid.UUID) (*models.InventoryMovement, error) {
	return repo.TakeOne[models.InventoryMovement](r.DB(ctx).Where("reverses_id = ?", id))
}

func (r *repository) ListMovementsByPart(ctx context.Context, partID string) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	err := r.DB(ctx).
		Where("part_id = ?", partID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListMovementsPage returns up to limit movements strictly after the cursor.
func (r *repository) ListMovementsPage(ctx context.Context, partID string, after *pagination.Cursor, limit int) ([]models.InventoryMovement, error) {
	q := r.DB(ctx).Where("part_id = ?", partID)
	if after != nil {
		q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.InventoryMovement
	err := q.
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListMovements(ctx context.Context) ([]models.InventoryMovement, error) {
	var rows []models.InventoryMovement
	err := r.DB(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
