package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/pkg/enums"
)

// PurchaseOrderHeader groups the lines ordered from one vendor.
type PurchaseOrderHeader struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	Vendor       string                    `gorm:"column:vendor;not null"`
	ExpectedDate *time.Time                `gorm:"column:expected_date"`
	Status       enums.PurchaseOrderStatus `gorm:"column:status;type:text;not null;default:'open'"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
	ClosedAt     *time.Time                `gorm:"column:closed_at"`
}

func (h *PurchaseOrderHeader) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

// PurchaseOrderLine is one part ordered under a header.
type PurchaseOrderLine struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	HeaderID    uuid.UUID       `gorm:"column:header_id;type:uuid;not null;index"`
	PartID      string          `gorm:"column:part_id;not null;index"`
	OrderedQty  int             `gorm:"column:ordered_qty;not null;check:chk_po_lines_ordered_qty,ordered_qty > 0"`
	ReceivedQty int             `gorm:"column:received_qty;not null;default:0;check:chk_po_lines_received_qty,received_qty >= 0"`
	LinkedQty   int             `gorm:"column:linked_qty;not null;default:0;check:chk_po_lines_linked_qty,linked_qty <= ordered_qty"`
	UnitCost    decimal.Decimal `gorm:"column:unit_cost;type:numeric(14,4);not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *PurchaseOrderLine) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Remaining returns the quantity still expected on the line.
func (l PurchaseOrderLine) Remaining() int {
	if l.ReceivedQty >= l.OrderedQty {
		return 0
	}
	return l.OrderedQty - l.ReceivedQty
}

// Extended returns ordered quantity times unit cost.
func (l PurchaseOrderLine) Extended() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.OrderedQty)))
}

// PartDemandPurchaseOrderLine reserves part of a line for a demand.
type PartDemandPurchaseOrderLine struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DemandID  string    `gorm:"column:demand_id;not null;index"`
	LineID    uuid.UUID `gorm:"column:line_id;type:uuid;not null;index"`
	LinkedQty int       `gorm:"column:linked_qty;not null;check:chk_demand_links_qty,linked_qty > 0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (d *PartDemandPurchaseOrderLine) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
