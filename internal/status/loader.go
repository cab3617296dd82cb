package status

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/pkg/db/models"
)

// Loader supplies the status catalog at process start.
type Loader interface {
	Load(ctx context.Context) ([]Status, error)
}

// StaticLoader serves the built-in catalog.
type StaticLoader struct{}

func (StaticLoader) Load(context.Context) ([]Status, error) {
	return DefaultCatalog(), nil
}

// DBLoader reads the catalog from the statuses table.
type DBLoader struct {
	db *gorm.DB
}

func NewDBLoader(db *gorm.DB) *DBLoader {
	return &DBLoader{db: db}
}

func (l *DBLoader) Load(ctx context.Context) ([]Status, error) {
	var rows []models.Status
	if err := l.db.WithContext(ctx).Order("sort_order ASC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Name:                row.Name,
			Description:         row.Description,
			RequiresContainment: row.RequiresContainment,
			Terminal:            row.Terminal,
			SortOrder:           row.SortOrder,
		})
	}
	return out, nil
}

// NewLoader picks a loader for the configured source ("static" or "db").
func NewLoader(source string, db *gorm.DB) (Loader, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "", "static":
		return StaticLoader{}, nil
	case "db":
		if db == nil {
			return nil, fmt.Errorf("db status source requires a database")
		}
		return NewDBLoader(db), nil
	default:
		return nil, fmt.Errorf("unknown status source %q", source)
	}
}

// Load builds a registry from the loader's catalog.
func Load(ctx context.Context, loader Loader, opts ...Option) (*Registry, error) {
	statuses, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewRegistry(statuses, opts...)
}

// Seed writes the default catalog to the statuses table when missing.
func Seed(ctx context.Context, db *gorm.DB) error {
	for _, s := range DefaultCatalog() {
		row := models.Status{
			Name:                s.Name,
			Description:         s.Description,
			RequiresContainment: s.RequiresContainment,
			Terminal:            s.Terminal,
			SortOrder:           s.SortOrder,
		}
		if err := db.WithContext(ctx).Where(models.Status{Name: s.Name}).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed status %q: %w", s.Name, err)
		}
	}
	return nil
}
