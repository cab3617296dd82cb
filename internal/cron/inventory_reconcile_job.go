package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/assetledger/internal/reconcile"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

// InventoryReconcileJobParams configure the ledger audit job.
type InventoryReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler reconciler
	Gauge      discrepancyGauge
}

type reconciler interface {
	Reconcile(ctx context.Context, partID *string) (reconcile.Report, error)
}

type discrepancyGauge interface {
	SetDiscrepancies(n int)
}

// NewInventoryReconcileJob builds the job that replays the arrival and
// movement logs against every ledger row.
func NewInventoryReconcileJob(params InventoryReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &inventoryReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		gauge:      params.Gauge,
	}, nil
}

type inventoryReconcileJob struct {
	logg       *logger.Logger
	reconciler reconciler
	gauge      discrepancyGauge
}

func (j *inventoryReconcileJob) Name() string { return "inventory-reconcile" }

func (j *inventoryReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Reconcile(ctx, nil)
	if err != nil {
		return fmt.Errorf("inventory reconcile: %w", err)
	}
	if j.gauge != nil {
		j.gauge.SetDiscrepancies(len(report.Discrepancies))
	}

	var errs error
	for _, d := range report.Discrepancies {
		logCtx := j.logg.WithLocation(j.logg.WithPartID(ctx, d.PartID), d.LocationID)
		logCtx = j.logg.WithFields(logCtx, map[string]any{"expected": d.Expected, "actual": d.Actual})
		j.logg.Warn(logCtx, "inventory.reconcile.discrepancy")
		errs = multierr.Append(errs, fmt.Errorf("part %s at %s: expected %d, actual %d", d.PartID, d.LocationID, d.Expected, d.Actual))
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeReconciliation, errs, fmt.Sprintf("%d inventory discrepancies", len(report.Discrepancies))).
			WithDetails(report.Discrepancies)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"rows_checked": report.RowsChecked,
		"arrivals":     report.Arrivals,
		"movements":    report.Movements,
	})
	j.logg.Info(logCtx, "inventory reconcile clean")
	return nil
}
