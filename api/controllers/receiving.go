package controllers

import (
	"net/http"

	"github.com/angelmondragon/assetledger/api/responses"
	"github.com/angelmondragon/assetledger/api/validators"
	"github.com/angelmondragon/assetledger/internal/receiving"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

// ReceivePackage posts every entry of a package. Entries succeed or fail
// independently; the response lists the outcome of each.
func ReceivePackage(svc receiving.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req receiving.ReceivePackageInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		results, err := svc.ReceivePackage(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := toReceivePackageResponse(results)
		status := http.StatusCreated
		if resp.Rejected > 0 {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, resp)
	}
}

func ListPartArrivals(svc receiving.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partID, err := validators.PathParam(r, "partId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		arrivals, err := svc.ListArrivalsByPart(r.Context(), partID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toArrivalResponses(arrivals))
	}
}
