package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/internal/status"
	pkgdb "github.com/angelmondragon/assetledger/pkg/db"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/keylock"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/outbox/payloads"
)

// Service is the authoritative store of quantity and status per part and location.
type Service interface {
	Credit(ctx context.Context, partID, locationID string, qty int) error
	Debit(ctx context.Context, partID, locationID string, qty int) error
	SetStatus(ctx context.Context, partID, locationID, newStatus string) error
	GetBalance(ctx context.Context, partID, locationID string) (int, error)
	ListBalances(ctx context.Context, partID string) ([]models.ActiveInventory, error)

	// Transaction-scoped primitives for callers that already hold the keys.
	CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*Change, error)
	DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*Change, error)
	FindTx(ctx context.Context, tx *gorm.DB, partID, locationID string) (*models.ActiveInventory, error)
}

// CreditInput adds quantity to a row. Status is the status the row should
// hold afterwards; empty keeps the current status, or Available for a new row.
type CreditInput struct {
	PartID     string
	LocationID string
	Qty        int
	Status     string
	Override   bool
}

// DebitInput removes quantity from a row.
type DebitInput struct {
	PartID     string
	LocationID string
	Qty        int
}

// Change reports a row before and after a mutation.
type Change struct {
	PartID     string
	LocationID string
	Created    bool
	FromStatus string
	ToStatus   string
	Balance    int
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires a ledger service.
type ServiceParams struct {
	Repository Repository
	Registry   *status.Registry
	Guard      *Guard
	Outbox     outboxPublisher
	Logger     *logger.Logger
	Metrics    *metrics.InventoryMetrics
}

type service struct {
	repo     Repository
	registry *status.Registry
	guard    *Guard
	outbox   outboxPublisher
	logg     *logger.Logger
	metrics  *metrics.InventoryMetrics
}

// NewService wires a ledger service with the provided collaborators.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("status registry required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("guard required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if _, err := params.Registry.Lookup(status.Available); err != nil {
		return nil, fmt.Errorf("status catalog must define %q: %w", status.Available, err)
	}
	return &service{
		repo:     params.Repository,
		registry: params.Registry,
		guard:    params.Guard,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) Credit(ctx context.Context, partID, locationID string, qty int) error {
	input := CreditInput{PartID: partID, LocationID: locationID, Qty: qty}
	if err := validateKeyQty(partID, locationID, qty); err != nil {
		return err
	}
	keys := []keylock.Key{{PartID: partID, LocationID: locationID}}
	var change *Change
	err := s.guard.Run(ctx, "credit", keys, func(tx *gorm.DB) error {
		var err error
		change, err = s.CreditTx(ctx, tx, input)
		if err != nil {
			return err
		}
		return s.journalAdjustment(ctx, tx, change, "", locationID, qty, qty)
	})
	if err != nil {
		return err
	}
	s.logChange(ctx, "inventory.credited", change, qty)
	return nil
}

func (s *service) Debit(ctx context.Context, partID, locationID string, qty int) error {
	input := DebitInput{PartID: partID, LocationID: locationID, Qty: qty}
	if err := validateKeyQty(partID, locationID, qty); err != nil {
		return err
	}
	keys := []keylock.Key{{PartID: partID, LocationID: locationID}}
	var change *Change
	err := s.guard.Run(ctx, "debit", keys, func(tx *gorm.DB) error {
		var err error
		change, err = s.DebitTx(ctx, tx, input)
		if err != nil {
			return err
		}
		return s.journalAdjustment(ctx, tx, change, locationID, "", qty, -qty)
	})
	if err != nil {
		return err
	}
	s.logChange(ctx, "inventory.debited", change, -qty)
	return nil
}

func (s *service) SetStatus(ctx context.Context, partID, locationID, newStatus string) error {
	if err := validateKey(partID, locationID); err != nil {
		return err
	}
	if _, err := s.registry.Lookup(newStatus); err != nil {
		return err
	}
	keys := []keylock.Key{{PartID: partID, LocationID: locationID}}
	var from string
	err := s.guard.Run(ctx, "set_status", keys, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.Find(ctx, partID, locationID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory row")
		}
		if row == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "no inventory for part %q at %q", partID, locationID)
		}
		from = row.StatusName
		if err := s.registry.CheckTransition(row.StatusName, newStatus, false); err != nil {
			return err
		}
		if row.StatusName == newStatus {
			return nil
		}
		expected := row.Version
		row.StatusName = newStatus
		ok, err := repo.UpdateVersioned(ctx, row, expected)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory status")
		}
		if !ok {
			return ErrConflict
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryStatusChanged,
			AggregateType: enums.AggregateInventory,
			AggregateID:   partID,
			Data: payloads.InventoryStatusChangedEvent{
				PartID:     partID,
				LocationID: locationID,
				FromStatus: from,
				ToStatus:   newStatus,
			},
		})
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithLocation(s.logg.WithPartID(ctx, partID), locationID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{"from_status": from, "to_status": newStatus})
		s.logg.Info(logCtx, "inventory.status.changed")
	}
	return nil
}

func (s *service) GetBalance(ctx context.Context, partID, locationID string) (int, error) {
	if err := validateKey(partID, locationID); err != nil {
		return 0, err
	}
	row, err := s.repo.Find(ctx, partID, locationID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory row")
	}
	if row == nil {
		return 0, nil
	}
	return row.Qty, nil
}

func (s *service) ListBalances(ctx context.Context, partID string) ([]models.ActiveInventory, error) {
	if strings.TrimSpace(partID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	rows, err := s.repo.ListByPart(ctx, partID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inventory rows")
	}
	return rows, nil
}

func (s *service) FindTx(ctx context.Context, tx *gorm.DB, partID, locationID string) (*models.ActiveInventory, error) {
	row, err := s.repo.WithTx(tx).Find(ctx, partID, locationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory row")
	}
	return row, nil
}

func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*Change, error) {
	if err := validateKeyQty(input.PartID, input.LocationID, input.Qty); err != nil {
		return nil, err
	}
	if input.Status != "" {
		if _, err := s.registry.Lookup(input.Status); err != nil {
			return nil, err
		}
	}
	repo := s.repo.WithTx(tx)
	row, err := repo.Find(ctx, input.PartID, input.LocationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory row")
	}

	if row == nil {
		target := input.Status
		if target == "" {
			target = status.Available
		}
		row = &models.ActiveInventory{
			PartID:     input.PartID,
			LocationID: input.LocationID,
			Qty:        input.Qty,
			StatusName: target,
			Version:    1,
		}
		if err := repo.Insert(ctx, row); err != nil {
			if pkgdb.IsUniqueViolation(err, "") {
				return nil, ErrConflict
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert inventory row")
		}
		return &Change{
			PartID:     row.PartID,
			LocationID: row.LocationID,
			Created:    true,
			ToStatus:   target,
			Balance:    row.Qty,
		}, nil
	}

	from := row.StatusName
	target := input.Status
	if target == "" {
		target = from
	}
	if s.registry.IsTerminal(from) && input.Status != from {
		return nil, terminalError(input.PartID, input.LocationID, from)
	}
	if target != from {
		if err := s.registry.CheckTransition(from, target, input.Override); err != nil {
			return nil, err
		}
	}

	expected := row.Version
	row.Qty += input.Qty
	row.StatusName = target
	ok, err := repo.UpdateVersioned(ctx, row, expected)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory row")
	}
	if !ok {
		return nil, ErrConflict
	}
	return &Change{
		PartID:     row.PartID,
		LocationID: row.LocationID,
		FromStatus: from,
		ToStatus:   target,
		Balance:    row.Qty,
	}, nil
}

func (s *service) DebitTx(ctx context.Context, tx *gorm.DB, input DebitInput) (*Change, error) {
	if err := validateKeyQty(input.PartID, input.LocationID, input.Qty); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	row, err := repo.Find(ctx, input.PartID, input.LocationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory row")
	}
	if row == nil {
		return nil, insufficientError(input.PartID, input.LocationID, 0, input.Qty)
	}
	if s.registry.IsTerminal(row.StatusName) {
		return nil, terminalError(input.PartID, input.LocationID, row.StatusName)
	}
	if row.Qty < input.Qty {
		return nil, insufficientError(input.PartID, input.LocationID, row.Qty, input.Qty)
	}

	expected := row.Version
	row.Qty -= input.Qty
	ok, err := repo.UpdateVersioned(ctx, row, expected)
	if err != nil {
		if pkgdb.IsCheckViolation(err) {
			return nil, insufficientError(input.PartID, input.LocationID, row.Qty+input.Qty, input.Qty)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory row")
	}
	if !ok {
		return nil, ErrConflict
	}
	return &Change{
		PartID:     row.PartID,
		LocationID: row.LocationID,
		FromStatus: row.StatusName,
		ToStatus:   row.StatusName,
		Balance:    row.Qty,
	}, nil
}

// journalAdjustment records a one-sided movement so reconciliation can
// replay standalone credits and debits.
func (s *service) journalAdjustment(ctx context.Context, tx *gorm.DB, change *Change, from, to string, qty, delta int) error {
	movement := &models.InventoryMovement{
		ID:           uuid.New(),
		PartID:       change.PartID,
		FromLocation: from,
		ToLocation:   to,
		Qty:          qty,
		MovementType: enums.MovementTypeAdjustment,
		FromStatus:   change.FromStatus,
		ToStatus:     change.ToStatus,
	}
	if err := s.repo.WithTx(tx).InsertMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "journal adjustment")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryAdjusted,
		AggregateType: enums.AggregateInventory,
		AggregateID:   change.PartID,
		Data: payloads.InventoryAdjustedEvent{
			MovementID: movement.ID,
			PartID:     change.PartID,
			LocationID: change.LocationID,
			Delta:      delta,
			Balance:    change.Balance,
			Status:     change.ToStatus,
		},
	})
}

func (s *service) logChange(ctx context.Context, msg string, change *Change, delta int) {
	s.metrics.IncMovement(enums.MovementTypeAdjustment.String())
	if s.logg == nil || change == nil {
		return
	}
	logCtx := s.logg.WithLocation(s.logg.WithPartID(ctx, change.PartID), change.LocationID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"delta":   delta,
		"balance": change.Balance,
		"status":  change.ToStatus,
	})
	s.logg.Info(logCtx, msg)
}

func validateKey(partID, locationID string) error {
	details := map[string]string{}
	if strings.TrimSpace(partID) == "" {
		details["part_id"] = "is required"
	}
	if strings.TrimSpace(locationID) == "" {
		details["location_id"] = "is required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return nil
}

func validateKeyQty(partID, locationID string, qty int) error {
	if err := validateKey(partID, locationID); err != nil {
		return err
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "qty must be greater than zero").
			WithDetails(map[string]string{"qty": "must be greater than 0"})
	}
	return nil
}

func insufficientError(partID, locationID string, available, requested int) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientInventory, "part %q at %q has %d, %d requested", partID, locationID, available, requested).
		WithDetails(map[string]any{
			"part_id":     partID,
			"location_id": locationID,
			"available":   available,
			"requested":   requested,
		})
}

func terminalError(partID, locationID, statusName string) error {
	return pkgerrors.Newf(pkgerrors.CodeTerminalState, "part %q at %q is %s", partID, locationID, statusName).
		WithDetails(map[string]any{
			"part_id":     partID,
			"location_id": locationID,
			"status":      statusName,
		})
}

// IsConflict reports whether err is a lost version race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
