package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/assetledger/api/responses"
	"github.com/angelmondragon/assetledger/api/validators"
	"github.com/angelmondragon/assetledger/internal/ledger"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

type quantityRequest struct {
	PartID     string `json:"part_id" validate:"required"`
	LocationID string `json:"location_id" validate:"required"`
	Qty        int    `json:"qty" validate:"gt=0"`
}

type statusRequest struct {
	PartID     string `json:"part_id" validate:"required"`
	LocationID string `json:"location_id" validate:"required"`
	Status     string `json:"status" validate:"required"`
}

// CreditInventory adds quantity to a part at a location.
func CreditInventory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustInventory(svc, logg, svc.Credit)
}

// DebitInventory removes quantity from a part at a location.
func DebitInventory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return adjustInventory(svc, logg, svc.Debit)
}

func adjustInventory(svc ledger.Service, logg *logger.Logger, apply func(context.Context, string, string, int) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quantityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := apply(r.Context(), req.PartID, req.LocationID, req.Qty); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty, err := svc.GetBalance(r.Context(), req.PartID, req.LocationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{PartID: req.PartID, LocationID: req.LocationID, Qty: qty})
	}
}

// SetInventoryStatus moves a row to a new status along the transition graph.
func SetInventoryStatus(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetStatus(r.Context(), req.PartID, req.LocationID, req.Status); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"part_id":     req.PartID,
			"location_id": req.LocationID,
			"status":      req.Status,
		})
	}
}

// GetInventoryBalance returns the quantity at ?part_id=&location_id=; missing rows read as zero.
func GetInventoryBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := validators.RequiredQuery(r, "part_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.RequiredQuery(r, "location_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty, err := svc.GetBalance(r.Context(), partID, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{PartID: partID, LocationID: locationID, Qty: qty})
	}
}

func ListPartBalances(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := validators.PathParam(r, "partId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListBalances(r.Context(), partID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBalanceResponses(rows))
	}
}
