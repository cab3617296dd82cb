package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/assetledger/pkg/enums"
)

// PurchaseOrderClosedEvent is emitted when a header leaves the open state.
type PurchaseOrderClosedEvent struct {
	HeaderID     uuid.UUID                 `json:"header_id"`
	Vendor       string                    `json:"vendor"`
	Status       enums.PurchaseOrderStatus `json:"status"`
	Forced       bool                      `json:"forced"`
	ShortLineIDs []uuid.UUID               `json:"short_line_ids,omitempty"`
	ClosedAt     time.Time                 `json:"closed_at"`
}

// PartArrivalPostedEvent is emitted for every accepted arrival entry.
type PartArrivalPostedEvent struct {
	ArrivalID   uuid.UUID `json:"arrival_id"`
	PackageID   string    `json:"package_id"`
	LineID      uuid.UUID `json:"line_id"`
	PartID      string    `json:"part_id"`
	LocationID  string    `json:"location_id"`
	Qty         int       `json:"qty"`
	OverReceipt bool      `json:"over_receipt"`
}

// InventoryAdjustedEvent is emitted for standalone ledger credits and debits.
type InventoryAdjustedEvent struct {
	MovementID uuid.UUID `json:"movement_id"`
	PartID     string    `json:"part_id"`
	LocationID string    `json:"location_id"`
	Delta      int       `json:"delta"`
	Balance    int       `json:"balance"`
	Status     string    `json:"status"`
}

// InventoryStatusChangedEvent is emitted when a row's status is set directly.
type InventoryStatusChangedEvent struct {
	PartID     string `json:"part_id"`
	LocationID string `json:"location_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// InventoryMovementRecordedEvent is emitted for every committed movement.
type InventoryMovementRecordedEvent struct {
	MovementID          uuid.UUID          `json:"movement_id"`
	PartID              string             `json:"part_id"`
	FromLocation        string             `json:"from_location"`
	ToLocation          string             `json:"to_location"`
	Qty                 int                `json:"qty"`
	MovementType        enums.MovementType `json:"movement_type"`
	FromStatus          string             `json:"from_status"`
	ToStatus            string             `json:"to_status"`
	ContainmentAttached bool               `json:"containment_attached"`
	ReversesID          *uuid.UUID         `json:"reverses_id,omitempty"`
}

// OrderingKey groups a header's events on the broker.
func (e PurchaseOrderClosedEvent) OrderingKey() string { return "po:" + e.HeaderID.String() }

// OrderingKey keeps every event for one part in commit order.
func (e PartArrivalPostedEvent) OrderingKey() string { return partKey(e.PartID) }

func (e InventoryAdjustedEvent) OrderingKey() string { return partKey(e.PartID) }

func (e InventoryStatusChangedEvent) OrderingKey() string { return partKey(e.PartID) }

func (e InventoryMovementRecordedEvent) OrderingKey() string { return partKey(e.PartID) }

func partKey(partID string) string {
	if partID == "" {
		return ""
	}
	return "part:" + partID
}
