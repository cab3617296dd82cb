// Package engine wires the inventory lifecycle services over one database
// client so every binary shares the same lock table and retry policy.
package engine

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/internal/ledger"
	"github.com/angelmondragon/assetledger/internal/movements"
	"github.com/angelmondragon/assetledger/internal/purchasing"
	"github.com/angelmondragon/assetledger/internal/receiving"
	"github.com/angelmondragon/assetledger/internal/reconcile"
	"github.com/angelmondragon/assetledger/internal/status"
	"github.com/angelmondragon/assetledger/pkg/config"
	"github.com/angelmondragon/assetledger/pkg/keylock"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	"github.com/angelmondragon/assetledger/pkg/outbox"
)

type dbClient interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithSnapshot(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Params configures Build.
type Params struct {
	Config   config.InventoryConfig
	DB       dbClient
	Registry *status.Registry
	Logger   *logger.Logger
	Metrics  *metrics.InventoryMetrics
}

// Engine holds the wired services.
type Engine struct {
	Registry   *status.Registry
	Guard      *ledger.Guard
	Ledger     ledger.Service
	Purchasing purchasing.Service
	Receiving  receiving.Service
	Movements  movements.Service
	Reconcile  reconcile.Service
}

// Build wires every service. A nil Registry loads the catalog from
// Config.StatusSource.
func Build(ctx context.Context, params Params) (*Engine, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	conn := params.DB.DB()

	registry := params.Registry
	if registry == nil {
		loader, err := status.NewLoader(params.Config.StatusSource, conn)
		if err != nil {
			return nil, err
		}
		registry, err = status.Load(ctx, loader)
		if err != nil {
			return nil, fmt.Errorf("load status catalog: %w", err)
		}
	}

	guard, err := ledger.NewGuard(ledger.GuardParams{
		Tx:           params.DB,
		Locks:        keylock.New(),
		MaxRetries:   params.Config.MaxRetries,
		RetryBackoff: params.Config.RetryBackoff,
		Logger:       params.Logger,
		Metrics:      params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	ob := outbox.NewService(outbox.NewRepository(conn), params.Logger)
	ledgerRepo := ledger.NewRepository(conn)
	purchasingRepo := purchasing.NewRepository(conn)
	receivingRepo := receiving.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledgerRepo,
		Registry:   registry,
		Guard:      guard,
		Outbox:     ob,
		Logger:     params.Logger,
		Metrics:    params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	purchasingSvc, err := purchasing.NewService(purchasing.ServiceParams{
		Repository: purchasingRepo,
		Tx:         params.DB,
		Outbox:     ob,
		Logger:     params.Logger,
	})
	if err != nil {
		return nil, err
	}

	receivingSvc, err := receiving.NewService(receiving.ServiceParams{
		Repository:        receivingRepo,
		Purchasing:        purchasingRepo,
		Ledger:            ledgerSvc,
		Guard:             guard,
		Outbox:            ob,
		ReceivingLocation: params.Config.ReceivingLocation,
		TolerancePct:      params.Config.OverReceiptTolerancePct,
		Logger:            params.Logger,
		Metrics:           params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	movementsSvc, err := movements.NewService(movements.ServiceParams{
		Ledger:     ledgerSvc,
		Repository: ledgerRepo,
		Registry:   registry,
		Guard:      guard,
		Outbox:     ob,
		Logger:     params.Logger,
		Metrics:    params.Metrics,
	})
	if err != nil {
		return nil, err
	}

	reconcileSvc, err := reconcile.NewService(reconcile.ServiceParams{
		Snapshot: params.DB,
		Arrivals: receivingRepo,
		Ledger:   ledgerRepo,
		Logger:   params.Logger,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		Registry:   registry,
		Guard:      guard,
		Ledger:     ledgerSvc,
		Purchasing: purchasingSvc,
		Receiving:  receivingSvc,
		Movements:  movementsSvc,
		Reconcile:  reconcileSvc,
	}, nil
}
