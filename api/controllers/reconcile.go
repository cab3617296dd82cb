package controllers

import (
	"net/http"

	"github.com/angelmondragon/assetledger/api/responses"
	"github.com/angelmondragon/assetledger/api/validators"
	"github.com/angelmondragon/assetledger/internal/reconcile"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

// RunReconciliation replays arrivals and movements against active inventory,
// optionally scoped with ?part_id=. Discrepancies are reported, not raised.
func RunReconciliation(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.Reconcile(r.Context(), validators.OptionalQuery(r, "part_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(report.Discrepancies) > 0 && logg != nil {
			logg.Warn(logg.WithField(r.Context(), "discrepancies", len(report.Discrepancies)), "inventory.reconcile.discrepancy")
		}
		responses.WriteSuccess(w, report)
	}
}
