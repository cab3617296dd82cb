package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/pkg/enums"
)

// ActiveInventory holds the authoritative quantity and status per part and location.
type ActiveInventory struct {
	PartID     string    `gorm:"column:part_id;primaryKey"`
	LocationID string    `gorm:"column:location_id;primaryKey"`
	Qty        int       `gorm:"column:qty;not null;default:0;check:chk_active_inventory_qty,qty >= 0"`
	StatusName string    `gorm:"column:status_name;not null"`
	Version    int       `gorm:"column:version;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ActiveInventory) TableName() string {
	return "active_inventory"
}

// InventoryMovement is an append-only record of quantity moving between locations.
// An empty location is the outside world.
type InventoryMovement struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PartID              string             `gorm:"column:part_id;not null;index"`
	FromLocation        string             `gorm:"column:from_location;not null;default:''"`
	ToLocation          string             `gorm:"column:to_location;not null;default:''"`
	Qty                 int                `gorm:"column:qty;not null;check:chk_inventory_movements_qty,qty > 0"`
	MovementType        enums.MovementType `gorm:"column:movement_type;type:text;not null"`
	FromStatus          string             `gorm:"column:from_status;not null;default:''"`
	ToStatus            string             `gorm:"column:to_status;not null;default:''"`
	ContainmentAttached bool               `gorm:"column:containment_attached;not null;default:false"`
	ReversesID          *uuid.UUID         `gorm:"column:reverses_id;type:uuid"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (m *InventoryMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	// History cursors compare created_at in UTC.
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}
