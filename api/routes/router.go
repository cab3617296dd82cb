package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/assetledger/api/controllers"
	"github.com/angelmondragon/assetledger/api/middleware"
	"github.com/angelmondragon/assetledger/internal/ledger"
	"github.com/angelmondragon/assetledger/internal/movements"
	"github.com/angelmondragon/assetledger/internal/purchasing"
	"github.com/angelmondragon/assetledger/internal/receiving"
	"github.com/angelmondragon/assetledger/internal/reconcile"
	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	pkgredis "github.com/angelmondragon/assetledger/pkg/redis"
)

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Purchasing purchasing.Service
	Receiving  receiving.Service
	Ledger     ledger.Service
	Movements  movements.Service
	Reconcile  reconcile.Service
}

// Dependencies are the infrastructure handles the router needs.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.AccessLog(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Idempotency runs per route so the matched pattern is known.
	idem := func(next http.Handler) http.Handler { return next }
	if deps.Idempotency != nil {
		idem = middleware.Idempotency(deps.Idempotency, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/purchase-orders", controllers.CreatePurchaseOrder(svc.Purchasing, logg))
		r.Get("/purchase-orders/{headerId}", controllers.GetPurchaseOrder(svc.Purchasing, logg))
		r.Post("/purchase-orders/{headerId}/lines", controllers.AddPurchaseOrderLine(svc.Purchasing, logg))
		r.Post("/purchase-orders/{headerId}/close", controllers.ClosePurchaseOrder(svc.Purchasing, logg))
		r.Post("/purchase-order-lines/{lineId}/demand-links", controllers.LinkDemand(svc.Purchasing, logg))
		r.Get("/purchase-order-lines/{lineId}/demand-links", controllers.ListDemandLinks(svc.Purchasing, logg))

		r.With(idem).Post("/packages", controllers.ReceivePackage(svc.Receiving, logg))

		r.With(idem).Post("/inventory/credit", controllers.CreditInventory(svc.Ledger, logg))
		r.With(idem).Post("/inventory/debit", controllers.DebitInventory(svc.Ledger, logg))
		r.Put("/inventory/status", controllers.SetInventoryStatus(svc.Ledger, logg))
		r.Get("/inventory/balance", controllers.GetInventoryBalance(svc.Ledger, logg))

		r.With(idem).Post("/movements", controllers.RecordMovement(svc.Movements, logg))
		r.With(idem).Post("/movements/{movementId}/reverse", controllers.ReverseMovement(svc.Movements, logg))

		r.Get("/parts/{partId}/balances", controllers.ListPartBalances(svc.Ledger, logg))
		r.Get("/parts/{partId}/movements", controllers.PartMovementHistory(svc.Movements, logg))
		r.Get("/parts/{partId}/arrivals", controllers.ListPartArrivals(svc.Receiving, logg))

		r.Post("/reconcile", controllers.RunReconciliation(svc.Reconcile, logg))
	})

	return r
}
