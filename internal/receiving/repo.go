package receiving

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/assetledger/internal/repo"
	"github.com/angelmondragon/assetledger/pkg/db/models"
)

// Repository persists package headers and part arrivals.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertPackage(ctx context.Context, pkg *models.PackageHeader) error
	FindPackage(ctx context.Context, id string) (*models.PackageHeader, error)
	FindArrival(ctx context.Context, packageID string, lineID uuid.UUID) (*models.PartArrival, error)
	CreateArrival(ctx context.Context, arrival *models.PartArrival) error
	ListArrivalsByPart(ctx context.Context, partID string) ([]models.PartArrival, error)
	ListArrivalsByPackage(ctx context.Context, packageID string) ([]models.PartArrival, error)
	ListArrivals(ctx context.Context) ([]models.PartArrival, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a receiving repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

// UpsertPackage inserts the package header once; later calls keep the
// original received_at.
func (r *repository) UpsertPackage(ctx context.Context, pkg *models.PackageHeader) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(pkg).Error
}

// FindPackage returns nil, nil when the package does not exist.
func (r *repository) FindPackage(ctx context.Context, id string) (*models.PackageHeader, error) {
	return repo.TakeOne[models.PackageHeader](r.DB(ctx).Where("id = ?", id))
}

// FindArrival returns nil, nil when no arrival exists for the pair.
func (r *repository) FindArrival(ctx context.Context, packageID string, lineID uuid.UUID) (*models.PartArrival, error) {
	return repo.TakeOne[models.PartArrival](r.DB(ctx).
		Where("package_id = ? AND line_id = ?", packageID, lineID))
}

func (r *repository) CreateArrival(ctx context.Context, arrival *models.PartArrival) error {
	return r.DB(ctx).Create(arrival).Error
}

func (r *repository) ListArrivalsByPart(ctx context.Context, partID string) ([]models.PartArrival, error) {
	var rows []models.PartArrival
	err := r.DB(ctx).
		Where("part_id = ?", partID).
		Order("posted_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListArrivalsByPackage(ctx context.Context, packageID string) ([]models.PartArrival, error) {
	var rows []models.PartArrival
	err := r.DB(ctx).
		Where("package_id = ?", packageID).
		Order("posted_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListArrivals(ctx context.Context) ([]models.PartArrival, error) {
	var rows []models.PartArrival
	err := r.DB(ctx).
		Order("posted_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
