package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/assetledger/api/responses"
	"github.com/angelmondragon/assetledger/api/validators"
	"github.com/angelmondragon/assetledger/internal/purchasing"
	"github.com/angelmondragon/assetledger/pkg/enums"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

type addLineRequest struct {
	PartID   string          `json:"part_id" validate:"required"`
	Qty      int             `json:"qty" validate:"gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type closeRequest struct {
	Force bool `json:"force"`
}

type linkDemandRequest struct {
	DemandID string `json:"demand_id" validate:"required"`
	Qty      int    `json:"qty" validate:"gt=0"`
}

// CreatePurchaseOrder opens a new purchase order header.
func CreatePurchaseOrder(svc purchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vendor       string     `json:"vendor" validate:"required"`
			ExpectedDate *time.Time `json:"expected_date,omitempty"`
		}
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := svc.CreateHeader(r.Context(), purchasing.CreateHeaderInput{
			Vendor:       req.Vendor,
			ExpectedDate: req.ExpectedDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, idResponse{ID: id})
	}
}

// GetPurchaseOrder returns a header with its lines and extended total.
func GetPurchaseOrder(svc purchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headerID, err := validators.PathUUID(r, "headerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		header, err := svc.GetHeader(r.Context(), headerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lines, err := svc.ListLines(r.Context(), headerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		total, err := svc.HeaderTotal(r.Context(), headerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toPurchaseOrderResponse(header, lines, total))
	}
}

// AddPurchaseOrderLine appends a line to an open header.
func AddPurchaseOrderLine(svc purchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headerID, err := validators.PathUUID(r, "headerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req addLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := svc.AddLine(r.Context(), purchasing.AddLineInput{
			HeaderID: headerID,
			PartID:   req.PartID,
			Qty:      req.Qty,
			UnitCost: req.UnitCost,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, idResponse{ID: id})
	}
}

// ClosePurchaseOrder closes a header; {"force": true} closes it short.
func ClosePurchaseOrder(svc purchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headerID, err := validators.PathUUID(r, "headerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req closeRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.CloseHeader(r.Context(), headerID, req.Force)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]enums.PurchaseOrderStatus{"status": status})
	}
}

// LinkDemand reserves part of a line for a demand.
func LinkDemand(svc purchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.PathUUID(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req linkDemandRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := svc.LinkDemand(r.Context(), purchasing.LinkDemandInput{
			LineID:   lineID,
			DemandID: req.DemandID,
			Qty:      req.Qty,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, idResponse{ID: id})
	}
}

func ListDemandLinks(svc purchasing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lineID, err := validators.PathUUID(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		links, err := svc.ListDemandLinks(r.Context(), lineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDemandLinkResponses(links))
	}
}
