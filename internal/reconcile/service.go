package reconcile

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/internal/ledger"
	"github.com/angelmondragon/assetledger/internal/receiving"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

// Discrepancy is a ledger row whose balance differs from the replayed logs.
type Discrepancy struct {
	PartID     string `json:"part_id"`
	LocationID string `json:"location_id"`
	Expected   int    `json:"expected"`
	Actual     int    `json:"actual"`
}

// Report is the result of one reconciliation pass.
type Report struct {
	PartID        *string       `json:"part_id,omitempty"`
	RowsChecked   int           `json:"rows_checked"`
	Arrivals      int           `json:"arrivals"`
	Movements     int           `json:"movements"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

// Err returns a RECONCILIATION_ERROR when the report has discrepancies.
func (r Report) Err() error {
	if len(r.Discrepancies) == 0 {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodeReconciliation, "%d inventory discrepancies", len(r.Discrepancies)).
		WithDetails(r.Discrepancies)
}

// Service audits the ledger against the arrival and movement logs.
type Service interface {
	Reconcile(ctx context.Context, partID *string) (Report, error)
}

type snapshotRunner interface {
	WithSnapshot(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires a reconcile service.
type ServiceParams struct {
	Snapshot snapshotRunner
	Arrivals receiving.Repository
	Ledger   ledger.Repository
	Logger   *logger.Logger
}

type service struct {
	snapshot snapshotRunner
	arrivals receiving.Repository
	ledger   ledger.Repository
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Snapshot == nil {
		return nil, fmt.Errorf("snapshot runner required")
	}
	if params.Arrivals == nil || params.Ledger == nil {
		return nil, fmt.Errorf("arrival and ledger repositories required")
	}
	return &service{
		snapshot: params.Snapshot,
		arrivals: params.Arrivals,
		ledger:   params.Ledger,
		logg:     params.Logger,
	}, nil
}

// read loads both logs and the ledger rows inside one snapshot.
func (s *service) read(ctx context.Context, tx *gorm.DB, partID *string) ([]models.PartArrival, []models.InventoryMovement, []models.ActiveInventory, error) {
	arrivalRepo := s.arrivals.WithTx(tx)
	ledgerRepo := s.ledger.WithTx(tx)

	var (
		arrivals  []models.PartArrival
		movements []models.InventoryMovement
		rows      []models.ActiveInventory
		err       error
	)
	if partID != nil {
		arrivals, err = arrivalRepo.ListArrivalsByPart(ctx, *partID)
	} else {
		arrivals, err = arrivalRepo.ListArrivals(ctx)
	}
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list arrivals")
	}
	if partID != nil {
		movements, err = ledgerRepo.ListMovementsByPart(ctx, *partID)
	} else {
		movements, err = ledgerRepo.ListMovements(ctx)
	}
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	if partID != nil {
		rows, err = ledgerRepo.ListByPart(ctx, *partID)
	} else {
		rows, err = ledgerRepo.List(ctx)
	}
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory rows")
	}
	return arrivals, movements, rows, nil
}

type balanceKey struct {
	part     string
	location string
}

// Reconcile replays arrivals as credits and movements as debit/credit pairs,
// then compares the result with every ledger row. A nil partID checks all
// parts. Nothing is written.
func (s *service) Reconcile(ctx context.Context, partID *string) (Report, error) {
	report := Report{PartID: partID}

	var (
		arrivals  []models.PartArrival
		movements []models.InventoryMovement
		rows      []models.ActiveInventory
	)
	err := s.snapshot.WithSnapshot(ctx, func(tx *gorm.DB) error {
		var err error
		arrivals, movements, rows, err = s.read(ctx, tx, partID)
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return report, err
		}
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open reconcile snapshot")
	}

	expected := make(map[balanceKey]int)
	for _, a := range arrivals {
		expected[balanceKey{a.PartID, a.LocationID}] += a.Qty
	}
	for _, m := range movements {
		if m.FromLocation != "" {
			expected[balanceKey{m.PartID, m.FromLocation}] -= m.Qty
		}
		if m.ToLocation != "" {
			expected[balanceKey{m.PartID, m.ToLocation}] += m.Qty
		}
	}

	actual := make(map[balanceKey]int, len(rows))
	for _, row := range rows {
		actual[balanceKey{row.PartID, row.LocationID}] = row.Qty
	}

	for key, qty := range actual {
		if expected[key] != qty {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				PartID: key.part, LocationID: key.location, Expected: expected[key], Actual: qty,
			})
		}
	}
	for key, qty := range expected {
		if _, ok := actual[key]; !ok && qty != 0 {
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				PartID: key.part, LocationID: key.location, Expected: qty, Actual: 0,
			})
		}
	}
	sort.Slice(report.Discrepancies, func(i, j int) bool {
		a, b := report.Discrepancies[i], report.Discrepancies[j]
		if a.PartID != b.PartID {
			return a.PartID < b.PartID
		}
		return a.LocationID < b.LocationID
	})

	report.RowsChecked = len(rows)
	report.Arrivals = len(arrivals)
	report.Movements = len(movements)

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"rows_checked":  report.RowsChecked,
			"arrivals":      report.Arrivals,
			"movements":     report.Movements,
			"discrepancies": len(report.Discrepancies),
		})
		if partID != nil {
			logCtx = s.logg.WithPartID(logCtx, *partID)
		}
		s.logg.Info(logCtx, "inventory.reconcile.completed")
	}
	return report, nil
}
