package cron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"

	"github.com/angelmondragon/assetledger/internal/reconcile"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
)

type fakeReconciler struct {
	report reconcile.Report
	err    error
	calls  int
}

func (f *fakeReconciler) Reconcile(ctx context.Context, partID *string) (reconcile.Report, error) {
	f.calls++
	if partID != nil {
		return reconcile.Report{}, errors.New("job must reconcile every part")
	}
	return f.report, f.err
}

type fakeGauge struct {
	value int
	set   bool
}

func (g *fakeGauge) SetDiscrepancies(n int) { g.value, g.set = n, true }

func TestInventoryReconcileJobClean(t *testing.T) {
	rec := &fakeReconciler{report: reconcile.Report{RowsChecked: 3}}
	gauge := &fakeGauge{value: 9}
	job, err := NewInventoryReconcileJob(InventoryReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reconciler: rec,
		Gauge:      gauge,
	})
	if err != nil {
		t.Fatalf("NewInventoryReconcileJob: %v", err)
	}
	if job.Name() != "inventory-reconcile" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !gauge.set || gauge.value != 0 {
		t.Fatalf("expected gauge reset to 0, got %d (set=%v)", gauge.value, gauge.set)
	}
}

func TestInventoryReconcileJobReportsDiscrepancies(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := &fakeReconciler{report: reconcile.Report{Discrepancies: []reconcile.Discrepancy{
		{PartID: "P1", LocationID: "A", Expected: 4, Actual: 5},
		{PartID: "P2", LocationID: "B", Expected: 1, Actual: 0},
	}}}
	gauge := &fakeGauge{}
	job, err := NewInventoryReconcileJob(InventoryReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: buf}),
		Reconciler: rec,
		Gauge:      gauge,
	})
	if err != nil {
		t.Fatalf("NewInventoryReconcileJob: %v", err)
	}

	err = job.Run(context.Background())
	if !pkgerrors.Is(err, pkgerrors.CodeReconciliation) {
		t.Fatalf("expected reconciliation error, got %v", err)
	}
	if n := len(multierr.Errors(errors.Unwrap(err))); n != 2 {
		t.Fatalf("expected 2 combined errors, got %d", n)
	}
	if gauge.value != 2 {
		t.Fatalf("expected gauge 2, got %d", gauge.value)
	}
	if got := strings.Count(buf.String(), "inventory.reconcile.discrepancy"); got != 2 {
		t.Fatalf("expected 2 discrepancy log lines, got %d", got)
	}
}

func TestInventoryReconcileJobPropagatesInfraErrors(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("db down")}
	job, err := NewInventoryReconcileJob(InventoryReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reconciler: rec,
	})
	if err != nil {
		t.Fatalf("NewInventoryReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil || pkgerrors.Is(err, pkgerrors.CodeReconciliation) {
		t.Fatalf("expected plain infra error, got %v", err)
	}
}
