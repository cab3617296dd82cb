package movements

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/internal/ledger"
	"github.com/angelmondragon/assetledger/internal/status"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/keylock"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/outbox/payloads"
	"github.com/angelmondragon/assetledger/pkg/pagination"
	"github.com/angelmondragon/assetledger/pkg/validate"
)

const eventSource = "movements"

// Service transfers quantity between locations and keeps the movement journal.
type Service interface {
	Move(ctx context.Context, input MoveInput) (uuid.UUID, error)
	Reverse(ctx context.Context, movementID uuid.UUID) (uuid.UUID, error)
	History(ctx context.Context, partID string) ([]models.InventoryMovement, error)
	HistoryPage(ctx context.Context, partID string, params pagination.Params) (HistoryPage, error)
}

// HistoryPage is one cursor page of a part's movement journal. NextCursor is
// empty on the last page.
type HistoryPage struct {
	Movements  []models.InventoryMovement
	NextCursor string
}

type MoveInput struct {
	PartID              string             `json:"part_id" validate:"required"`
	FromLocation        string             `json:"from_location" validate:"required"`
	ToLocation          string             `json:"to_location" validate:"required,nefield=FromLocation"`
	Qty                 int                `json:"qty" validate:"gt=0"`
	Type                enums.MovementType `json:"movement_type" validate:"required"`
	TargetStatus        string             `json:"target_status,omitempty"`
	ContainmentAttached bool               `json:"containment_attached"`
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires a movement service.
type ServiceParams struct {
	Ledger     ledger.Service
	Repository ledger.Repository
	Registry   *status.Registry
	Guard      *ledger.Guard
	Outbox     outboxPublisher
	Logger     *logger.Logger
	Metrics    *metrics.InventoryMetrics
}

type service struct {
	ledger   ledger.Service
	repo     ledger.Repository
	registry *status.Registry
	guard    *ledger.Guard
	outbox   outboxPublisher
	logg     *logger.Logger
	metrics  *metrics.InventoryMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Ledger == nil || params.Repository == nil {
		return nil, fmt.Errorf("ledger service and repository required")
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
	return &service{
		ledger:   params.Ledger,
		repo:     params.Repository,
		registry: params.Registry,
		guard:    params.Guard,
		outbox:   params.Outbox,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// Move debits the source and credits the destination in one transaction and
// journals the movement.
func (s *service) Move(ctx context.Context, input MoveInput) (uuid.UUID, error) {
	input.PartID = strings.TrimSpace(input.PartID)
	input.FromLocation = strings.TrimSpace(input.FromLocation)
	input.ToLocation = strings.TrimSpace(input.ToLocation)
	if err := validate.Struct(input); err != nil {
		return uuid.Nil, err
	}
	if !input.Type.IsValid() {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown movement type %q", input.Type).
			WithDetails(map[string]string{"movement_type": "must be one of receipt, transfer, issue, retire, adjustment"})
	}
	if input.TargetStatus != "" {
		if _, err := s.registry.Lookup(input.TargetStatus); err != nil {
			return uuid.Nil, err
		}
	}

	keys := []keylock.Key{
		{PartID: input.PartID, LocationID: input.FromLocation},
		{PartID: input.PartID, LocationID: input.ToLocation},
	}
	var movement *models.InventoryMovement
	err := s.guard.Run(ctx, "move", keys, func(tx *gorm.DB) error {
		var err error
		movement, err = s.move(ctx, tx, input)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.recorded(ctx, movement)
	return movement.ID, nil
}

func (s *service) move(ctx context.Context, tx *gorm.DB, input MoveInput) (*models.InventoryMovement, error) {
	src, err := s.ledger.FindTx(ctx, tx, input.PartID, input.FromLocation)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeInsufficientInventory, "part %q has no inventory at %q", input.PartID, input.FromLocation).
			WithDetails(map[string]any{
				"part_id":     input.PartID,
				"location_id": input.FromLocation,
				"available":   0,
				"requested":   input.Qty,
			})
	}
	if s.registry.IsTerminal(src.StatusName) {
		return nil, pkgerrors.Newf(pkgerrors.CodeTerminalState, "part %q at %q is %s", input.PartID, input.FromLocation, src.StatusName).
			WithDetails(map[string]any{"part_id": input.PartID, "location_id": input.FromLocation, "status": src.StatusName})
	}
	dst, err := s.ledger.FindTx(ctx, tx, input.PartID, input.ToLocation)
	if err != nil {
		return nil, err
	}

	target := resolveTarget(input, src, dst)
	if _, err := s.registry.Lookup(target); err != nil {
		return nil, err
	}
	if s.registry.RequiresContainment(target) && !input.ContainmentAttached {
		return nil, pkgerrors.Newf(pkgerrors.CodeContainmentRequired, "status %s requires a containment", target).
			WithDetails(map[string]any{"status": target})
	}
	if err := s.checkDestination(input, dst, target); err != nil {
		return nil, err
	}
	override := input.Type.AllowsOverride()
	if err := s.registry.CheckTransition(src.StatusName, target, override); err != nil {
		return nil, err
	}

	if _, err := s.ledger.DebitTx(ctx, tx, ledger.DebitInput{
		PartID:     input.PartID,
		LocationID: input.FromLocation,
		Qty:        input.Qty,
	}); err != nil {
		return nil, err
	}
	if _, err := s.ledger.CreditTx(ctx, tx, ledger.CreditInput{
		PartID:     input.PartID,
		LocationID: input.ToLocation,
		Qty:        input.Qty,
		Status:     target,
		Override:   override,
	}); err != nil {
		return nil, err
	}

	movement := &models.InventoryMovement{
		ID:                  uuid.New(),
		PartID:              input.PartID,
		FromLocation:        input.FromLocation,
		ToLocation:          input.ToLocation,
		Qty:                 input.Qty,
		MovementType:        input.Type,
		FromStatus:          src.StatusName,
		ToStatus:            target,
		ContainmentAttached: input.ContainmentAttached,
	}
	if err := s.journal(ctx, tx, movement); err != nil {
		return nil, err
	}
	return movement, nil
}

// checkDestination rejects a move that would restate the status of stock
// already held at the destination. Only a retire may land in a terminal status.
func (s *service) checkDestination(input MoveInput, dst *models.ActiveInventory, target string) error {
	if s.registry.IsTerminal(target) && input.Type != enums.MovementTypeRetire {
		return pkgerrors.Newf(pkgerrors.CodeInvalidStatusTransition, "%s movement cannot land in %s at %q", input.Type, target, input.ToLocation).
			WithDetails(map[string]any{
				"movement_type": input.Type,
				"location_id":   input.ToLocation,
				"to_status":     target,
			})
	}
	if dst != nil && dst.Qty > 0 && dst.StatusName != target {
		return pkgerrors.Newf(pkgerrors.CodeInvalidStatusTransition, "location %q holds %d %s units of part %q, cannot add %s units", input.ToLocation, dst.Qty, dst.StatusName, input.PartID, target).
			WithDetails(map[string]any{
				"part_id":     input.PartID,
				"location_id": input.ToLocation,
				"from":        dst.StatusName,
				"to":          target,
			})
	}
	return nil
}

// resolveTarget picks the destination status: retire forces Retired, then
// an explicit target, then the destination's status, then the source's.
func resolveTarget(input MoveInput, src, dst *models.ActiveInventory) string {
	switch {
	case input.Type == enums.MovementTypeRetire:
		return status.Retired
	case input.TargetStatus != "":
		return input.TargetStatus
	case dst != nil:
		return dst.StatusName
	default:
		return src.StatusName
	}
}

// Reverse journals an adjustment that undoes movementID. A movement can be
// reversed once.
func (s *service) Reverse(ctx context.Context, movementID uuid.UUID) (uuid.UUID, error) {
	if movementID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id required")
	}
	original, err := s.repo.FindMovement(ctx, movementID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load movement")
	}
	if original == nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "movement %s not found", movementID)
	}

	var keys []keylock.Key
	for _, loc := range []string{original.FromLocation, original.ToLocation} {
		if loc != "" {
			keys = append(keys, keylock.Key{PartID: original.PartID, LocationID: loc})
		}
	}

	var movement *models.InventoryMovement
	err = s.guard.Run(ctx, "reverse", keys, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindReversal(ctx, original.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check reversal")
		}
		if existing != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "movement %s was already reversed by %s", original.ID, existing.ID).
				WithDetails(map[string]any{"movement_id": original.ID, "reversed_by": existing.ID})
		}

		toStatus := original.FromStatus
		if original.ToLocation != "" {
			if _, err := s.ledger.DebitTx(ctx, tx, ledger.DebitInput{
				PartID:     original.PartID,
				LocationID: original.ToLocation,
				Qty:        original.Qty,
			}); err != nil {
				return err
			}
		}
		if original.FromLocation != "" {
			change, err := s.ledger.CreditTx(ctx, tx, ledger.CreditInput{
				PartID:     original.PartID,
				LocationID: original.FromLocation,
				Qty:        original.Qty,
			})
			if err != nil {
				return err
			}
			toStatus = change.ToStatus
		}

		reverses := original.ID
		movement = &models.InventoryMovement{
			ID:           uuid.New(),
			PartID:       original.PartID,
			FromLocation: original.ToLocation,
			ToLocation:   original.FromLocation,
			Qty:          original.Qty,
			MovementType: enums.MovementTypeAdjustment,
			FromStatus:   original.ToStatus,
			ToStatus:     toStatus,
			ReversesID:   &reverses,
		}
		return s.journal(ctx, tx, movement)
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.recorded(ctx, movement)
	return movement.ID, nil
}

func (s *service) History(ctx context.Context, partID string) ([]models.InventoryMovement, error) {
	if strings.TrimSpace(partID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	rows, err := s.repo.ListMovementsByPart(ctx, partID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return rows, nil
}

func (s *service) HistoryPage(ctx context.Context, partID string, params pagination.Params) (HistoryPage, error) {
	if strings.TrimSpace(partID) == "" {
		return HistoryPage{}, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	cursor, err := pagination.Parse(params.Cursor, partID)
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	rows, err := s.repo.ListMovementsPage(ctx, partID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	var page HistoryPage
	page.Movements, page.NextCursor = pagination.Split(rows, params.Limit, partID, movementKey)
	return page, nil
}

func movementKey(m models.InventoryMovement) (time.Time, uuid.UUID) {
	return m.CreatedAt, m.ID
}

func (s *service) journal(ctx context.Context, tx *gorm.DB, movement *models.InventoryMovement) error {
	if err := s.repo.WithTx(tx).InsertMovement(ctx, movement); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert movement")
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInventoryMovementRecorded,
		AggregateType: enums.AggregateInventoryMovement,
		AggregateID:   movement.ID.String(),
		Source:        eventSource,
		Data: payloads.InventoryMovementRecordedEvent{
			MovementID:          movement.ID,
			PartID:              movement.PartID,
			FromLocation:        movement.FromLocation,
			ToLocation:          movement.ToLocation,
			Qty:                 movement.Qty,
			MovementType:        movement.MovementType,
			FromStatus:          movement.FromStatus,
			ToStatus:            movement.ToStatus,
			ContainmentAttached: movement.ContainmentAttached,
			ReversesID:          movement.ReversesID,
		},
	})
}

func (s *service) recorded(ctx context.Context, movement *models.InventoryMovement) {
	s.metrics.IncMovement(movement.MovementType.String())
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithPartID(ctx, movement.PartID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"movement_id":   movement.ID,
		"movement_type": movement.MovementType,
		"from_location": movement.FromLocation,
		"to_location":   movement.ToLocation,
		"qty":           movement.Qty,
		"from_status":   movement.FromStatus,
		"to_status":     movement.ToStatus,
	})
	s.logg.Info(logCtx, "inventory.movement.recorded")
}
