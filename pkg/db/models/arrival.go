package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PackageHeader identifies one physical shipment.
type PackageHeader struct {
	ID         string    `gorm:"column:id;primaryKey"`
	CarrierRef string    `gorm:"column:carrier_ref;not null;default:''"`
	ReceivedAt time.Time `gorm:"column:received_at;not null"`
}

// PartArrival is an immutable receipt of quantity against a purchase order line.
type PartArrival struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PackageID   string    `gorm:"column:package_id;not null;uniqueIndex:ux_part_arrivals_package_line,priority:1"`
	LineID      uuid.UUID `gorm:"column:line_id;type:uuid;not null;uniqueIndex:ux_part_arrivals_package_line,priority:2"`
	PartID      string    `gorm:"column:part_id;not null;index"`
	LocationID  string    `gorm:"column:location_id;not null"`
	Qty         int       `gorm:"column:qty;not null;check:chk_part_arrivals_qty,qty > 0"`
	OverReceipt bool      `gorm:"column:over_receipt;not null;default:false"`
	PostedAt    time.Time `gorm:"column:posted_at;not null"`
}

func (a *PartArrival) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
