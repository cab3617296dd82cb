package controllers

import (
	"net/http"

	"github.com/angelmondragon/assetledger/api/responses"
	"github.com/angelmondragon/assetledger/api/validators"
	"github.com/angelmondragon/assetledger/internal/movements"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/pagination"
)

// RecordMovement moves quantity between two locations in one transaction.
func RecordMovement(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req movements.MoveInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := svc.Move(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, idResponse{ID: id})
	}
}

func ReverseMovement(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		movementID, err := validators.PathUUID(r, "movementId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := svc.Reverse(r.Context(), movementID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, idResponse{ID: id})
	}
}

// PartMovementHistory pages through a part's journal oldest first using
// ?limit= and the opaque ?cursor= from the previous page.
func PartMovementHistory(svc movements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := validators.PathParam(r, "partId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.OptionalInt(r, "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{Limit: limit}
		if cursor := validators.OptionalQuery(r, "cursor"); cursor != nil {
			params.Cursor = *cursor
		}
		page, err := svc.HistoryPage(r.Context(), partID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movementPageResponse{
			Movements:  toMovementResponses(page.Movements),
			NextCursor: page.NextCursor,
		})
	}
}
