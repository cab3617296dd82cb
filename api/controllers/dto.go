package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/assetledger/api/responses"
	"github.com/angelmondragon/assetledger/internal/receiving"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
)

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

type purchaseOrderResponse struct {
	ID           uuid.UUID                 `json:"id"`
	Vendor       string                    `json:"vendor"`
	ExpectedDate *time.Time                `json:"expected_date,omitempty"`
	Status       enums.PurchaseOrderStatus `json:"status"`
	CreatedAt    time.Time                 `json:"created_at"`
	ClosedAt     *time.Time                `json:"closed_at,omitempty"`
	Total        decimal.Decimal           `json:"total"`
	Lines        []lineResponse            `json:"lines"`
}

type lineResponse struct {
	ID          uuid.UUID       `json:"id"`
	PartID      string          `json:"part_id"`
	OrderedQty  int             `json:"ordered_qty"`
	ReceivedQty int             `json:"received_qty"`
	LinkedQty   int             `json:"linked_qty"`
	Remaining   int             `json:"remaining"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

type demandLinkResponse struct {
	ID        uuid.UUID `json:"id"`
	DemandID  string    `json:"demand_id"`
	LineID    uuid.UUID `json:"line_id"`
	LinkedQty int       `json:"linked_qty"`
	CreatedAt time.Time `json:"created_at"`
}

type arrivalResponse struct {
	ID          uuid.UUID `json:"id"`
	PackageID   string    `json:"package_id"`
	LineID      uuid.UUID `json:"line_id"`
	PartID      string    `json:"part_id"`
	LocationID  string    `json:"location_id"`
	Qty         int       `json:"qty"`
	OverReceipt bool      `json:"over_receipt"`
	PostedAt    time.Time `json:"posted_at"`
}

type receiveEntryResponse struct {
	LineID      uuid.UUID       `json:"line_id"`
	ArrivalID   *uuid.UUID      `json:"arrival_id,omitempty"`
	OverReceipt bool            `json:"over_receipt"`
	Error       *responses.ErrorBody `json:"error,omitempty"`
}

type receivePackageResponse struct {
	Accepted int                    `json:"accepted"`
	Rejected int                    `json:"rejected"`
	Entries  []receiveEntryResponse `json:"entries"`
}

type balanceResponse struct {
	PartID     string    `json:"part_id"`
	LocationID string    `json:"location_id"`
	Qty        int       `json:"qty"`
	Status     string    `json:"status,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

type movementResponse struct {
	ID                  uuid.UUID          `json:"id"`
	PartID              string             `json:"part_id"`
	FromLocation        string             `json:"from_location"`
	ToLocation          string             `json:"to_location"`
	Qty                 int                `json:"qty"`
	MovementType        enums.MovementType `json:"movement_type"`
	FromStatus          string             `json:"from_status"`
	ToStatus            string             `json:"to_status"`
	ContainmentAttached bool               `json:"containment_attached"`
	ReversesID          *uuid.UUID         `json:"reverses_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

type movementPageResponse struct {
	Movements  []movementResponse `json:"movements"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func toPurchaseOrderResponse(header *models.PurchaseOrderHeader, lines []models.PurchaseOrderLine, total decimal.Decimal) purchaseOrderResponse {
	out := purchaseOrderResponse{
		ID:           header.ID,
		Vendor:       header.Vendor,
		ExpectedDate: header.ExpectedDate,
		Status:       header.Status,
		CreatedAt:    header.CreatedAt,
		ClosedAt:     header.ClosedAt,
		Total:        total,
		Lines:        make([]lineResponse, 0, len(lines)),
	}
	for _, l := range lines {
		out.Lines = append(out.Lines, lineResponse{
			ID:          l.ID,
			PartID:      l.PartID,
			OrderedQty:  l.OrderedQty,
			ReceivedQty: l.ReceivedQty,
			LinkedQty:   l.LinkedQty,
			Remaining:   l.Remaining(),
			UnitCost:    l.UnitCost,
		})
	}
	return out
}

func toDemandLinkResponses(links []models.PartDemandPurchaseOrderLine) []demandLinkResponse {
	out := make([]demandLinkResponse, 0, len(links))
	for _, l := range links {
		out = append(out, demandLinkResponse{
			ID:        l.ID,
			DemandID:  l.DemandID,
			LineID:    l.LineID,
			LinkedQty: l.LinkedQty,
			CreatedAt: l.CreatedAt,
		})
	}
	return out
}

func toArrivalResponses(arrivals []models.PartArrival) []arrivalResponse {
	out := make([]arrivalResponse, 0, len(arrivals))
	for _, a := range arrivals {
		out = append(out, arrivalResponse{
			ID:          a.ID,
			PackageID:   a.PackageID,
			LineID:      a.LineID,
			PartID:      a.PartID,
			LocationID:  a.LocationID,
			Qty:         a.Qty,
			OverReceipt: a.OverReceipt,
			PostedAt:    a.PostedAt,
		})
	}
	return out
}

func toReceivePackageResponse(results []receiving.EntryResult) receivePackageResponse {
	out := receivePackageResponse{Entries: make([]receiveEntryResponse, 0, len(results))}
	for _, res := range results {
		entry := receiveEntryResponse{LineID: res.LineID, OverReceipt: res.OverReceipt}
		if res.Err != nil {
			out.Rejected++
			apiErr, _ := responses.PublicError(res.Err)
			entry.Error = &apiErr
		} else {
			out.Accepted++
			id := res.ArrivalID
			entry.ArrivalID = &id
		}
		out.Entries = append(out.Entries, entry)
	}
	return out
}

func toBalanceResponses(rows []models.ActiveInventory) []balanceResponse {
	out := make([]balanceResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, balanceResponse{
			PartID:     row.PartID,
			LocationID: row.LocationID,
			Qty:        row.Qty,
			Status:     row.StatusName,
			UpdatedAt:  row.UpdatedAt,
		})
	}
	return out
}

func toMovementResponses(moves []models.InventoryMovement) []movementResponse {
	out := make([]movementResponse, 0, len(moves))
	for _, m := range moves {
		out = append(out, movementResponse{
			ID:                  m.ID,
			PartID:              m.PartID,
			FromLocation:        m.FromLocation,
			ToLocation:          m.ToLocation,
			Qty:                 m.Qty,
			MovementType:        m.MovementType,
			FromStatus:          m.FromStatus,
			ToStatus:            m.ToStatus,
			ContainmentAttached: m.ContainmentAttached,
			ReversesID:          m.ReversesID,
			CreatedAt:           m.CreatedAt,
		})
	}
	return out
}
