package receiving

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/internal/ledger"
	"github.com/angelmondragon/assetledger/internal/purchasing"
	pkgdb "github.com/angelmondragon/assetledger/pkg/db"
	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/keylock"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/metrics"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/outbox/payloads"
	"github.com/angelmondragon/assetledger/pkg/validate"
)

const eventSource = "receiving"

// Service posts package arrivals against purchase order lines.
type Service interface {
	ReceivePackage(ctx context.Context, input ReceivePackageInput) ([]EntryResult, error)
	ListArrivalsByPart(ctx context.Context, partID string) ([]models.PartArrival, error)
}

type ReceivePackageInput struct {
	PackageID  string         `json:"package_id" validate:"required"`
	CarrierRef string         `json:"carrier_ref"`
	Entries    []ReceiveEntry `json:"entries" validate:"required,min=1,dive"`
}

type ReceiveEntry struct {
	LineID           uuid.UUID `json:"line_id" validate:"required"`
	Qty              int       `json:"qty" validate:"gt=0"`
	AllowOverReceipt bool      `json:"allow_over_receipt"`
}

// EntryResult reports the outcome of one entry. Err is nil on success.
type EntryResult struct {
	LineID      uuid.UUID
	ArrivalID   uuid.UUID
	OverReceipt bool
	Err         error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires a receiving service.
type ServiceParams struct {
	Repository        Repository
	Purchasing        purchasing.Repository
	Ledger            ledger.Service
	Guard             *ledger.Guard
	Outbox            outboxPublisher
	ReceivingLocation string
	TolerancePct      int
	Logger            *logger.Logger
	Metrics           *metrics.InventoryMetrics
}

type service struct {
	repo         Repository
	lines        purchasing.Repository
	ledger       ledger.Service
	guard        *ledger.Guard
	outbox       outboxPublisher
	location     string
	tolerancePct int
	logg         *logger.Logger
	metrics      *metrics.InventoryMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("receiving repository required")
	}
	if params.Purchasing == nil {
		return nil, fmt.Errorf("purchasing repository required")
	}
	if params.Ledger == nil || params.Guard == nil {
		return nil, fmt.Errorf("ledger and guard required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if strings.TrimSpace(params.ReceivingLocation) == "" {
		return nil, fmt.Errorf("receiving location required")
	}
	if params.TolerancePct < 0 {
		return nil, fmt.Errorf("over-receipt tolerance must be >= 0")
	}
	return &service{
		repo:         params.Repository,
		lines:        params.Purchasing,
		ledger:       params.Ledger,
		guard:        params.Guard,
		outbox:       params.Outbox,
		location:     params.ReceivingLocation,
		tolerancePct: params.TolerancePct,
		logg:         params.Logger,
		metrics:      params.Metrics,
	}, nil
}

// ReceivePackage posts every entry in its own transaction, in submitted order.
// A failed entry does not undo earlier ones.
func (s *service) ReceivePackage(ctx context.Context, input ReceivePackageInput) ([]EntryResult, error) {
	input.PackageID = strings.TrimSpace(input.PackageID)
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	pkg := &models.PackageHeader{
		ID:         input.PackageID,
		CarrierRef: input.CarrierRef,
		ReceivedAt: time.Now().UTC(),
	}
	if err := s.repo.UpsertPackage(ctx, pkg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert package header")
	}
	if s.logg != nil {
		ctx = s.logg.WithField(ctx, "package_id", input.PackageID)
	}

	results := make([]EntryResult, 0, len(input.Entries))
	for _, entry := range input.Entries {
		result := s.receiveEntry(ctx, input.PackageID, entry)
		if result.Err != nil {
			s.metrics.IncArrival("rejected")
			if s.logg != nil {
				logCtx := s.logg.WithFields(s.logg.WithError(ctx, result.Err), map[string]any{"line_id": entry.LineID, "qty": entry.Qty})
				s.logg.Warn(logCtx, "receiving.entry.rejected")
			}
		} else {
			s.metrics.IncArrival("accepted")
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *service) receiveEntry(ctx context.Context, packageID string, entry ReceiveEntry) EntryResult {
	result := EntryResult{LineID: entry.LineID}

	line, err := s.lines.FindLine(ctx, entry.LineID)
	if err != nil {
		result.Err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order line")
		return result
	}
	if line == nil {
		result.Err = unknownLineError(entry.LineID)
		return result
	}

	keys := []keylock.Key{{PartID: line.PartID, LocationID: s.location}}
	var arrival *models.PartArrival
	err = s.guard.Run(ctx, "receive", keys, func(tx *gorm.DB) error {
		var err error
		arrival, err = s.postArrival(ctx, tx, packageID, entry)
		return err
	})
	if err != nil {
		result.Err = err
		return result
	}
	result.ArrivalID = arrival.ID
	result.OverReceipt = arrival.OverReceipt

	if s.logg != nil {
		logCtx := s.logg.WithLocation(s.logg.WithPartID(ctx, arrival.PartID), arrival.LocationID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"arrival_id":   arrival.ID,
			"line_id":      arrival.LineID,
			"qty":          arrival.Qty,
			"over_receipt": arrival.OverReceipt,
		})
		s.logg.Info(logCtx, "receiving.arrival.posted")
	}
	return result
}

func (s *service) postArrival(ctx context.Context, tx *gorm.DB, packageID string, entry ReceiveEntry) (*models.PartArrival, error) {
	lines := s.lines.WithTx(tx)
	arrivals := s.repo.WithTx(tx)

	line, err := lines.FindLine(ctx, entry.LineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order line")
	}
	if line == nil {
		return nil, unknownLineError(entry.LineID)
	}
	// The share lock holds off CloseHeader until this arrival commits.
	header, err := lines.FindHeaderForShare(ctx, line.HeaderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order header")
	}
	if header == nil || !header.Status.AcceptsArrivals() {
		return nil, unknownLineError(entry.LineID)
	}

	existing, err := arrivals.FindArrival(ctx, packageID, line.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check duplicate arrival")
	}
	if existing != nil {
		return nil, duplicateArrivalError(packageID, line.ID)
	}

	line, err = lines.FindLine(ctx, line.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase order line")
	}
	if line == nil {
		return nil, unknownLineError(entry.LineID)
	}
	remaining := line.OrderedQty - line.ReceivedQty
	tolerance := line.OrderedQty * s.tolerancePct / 100
	if !entry.AllowOverReceipt && entry.Qty > remaining+tolerance {
		return nil, pkgerrors.Newf(pkgerrors.CodeOverReceipt, "line %s has %d remaining, %d received", line.ID, remaining, entry.Qty).
			WithDetails(map[string]any{
				"line_id":   line.ID,
				"ordered":   line.OrderedQty,
				"received":  line.ReceivedQty,
				"tolerance": tolerance,
				"requested": entry.Qty,
			})
	}

	arrival := &models.PartArrival{
		PackageID:   packageID,
		LineID:      line.ID,
		PartID:      line.PartID,
		LocationID:  s.location,
		Qty:         entry.Qty,
		OverReceipt: entry.Qty > remaining,
		PostedAt:    time.Now().UTC(),
	}
	if err := arrivals.CreateArrival(ctx, arrival); err != nil {
		if pkgdb.IsUniqueViolation(err, "ux_part_arrivals_package_line") {
			return nil, duplicateArrivalError(packageID, line.ID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create part arrival")
	}

	var ceiling *int
	if !entry.AllowOverReceipt {
		limit := line.OrderedQty + tolerance
		ceiling = &limit
	}
	ok, err := lines.AddReceived(ctx, line.ID, entry.Qty, ceiling)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update received quantity")
	}
	if !ok {
		return nil, ledger.ErrConflict
	}

	if _, err := s.ledger.CreditTx(ctx, tx, ledger.CreditInput{
		PartID:     line.PartID,
		LocationID: s.location,
		Qty:        entry.Qty,
	}); err != nil {
		return nil, err
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPartArrivalPosted,
		AggregateType: enums.AggregatePartArrival,
		AggregateID:   arrival.ID.String(),
		Source:        eventSource,
		OccurredAt:    arrival.PostedAt,
		Data: payloads.PartArrivalPostedEvent{
			ArrivalID:   arrival.ID,
			PackageID:   packageID,
			LineID:      line.ID,
			PartID:      line.PartID,
			LocationID:  s.location,
			Qty:         entry.Qty,
			OverReceipt: arrival.OverReceipt,
		},
	}); err != nil {
		return nil, err
	}
	return arrival, nil
}

func (s *service) ListArrivalsByPart(ctx context.Context, partID string) ([]models.PartArrival, error) {
	if strings.TrimSpace(partID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part id required")
	}
	rows, err := s.repo.ListArrivalsByPart(ctx, partID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list arrivals")
	}
	return rows, nil
}

func unknownLineError(lineID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeUnknownLine, "purchase order line %s is unknown or closed", lineID).
		WithDetails(map[string]any{"line_id": lineID})
}

func duplicateArrivalError(packageID string, lineID uuid.UUID) error {
	return pkgerrors.Newf(pkgerrors.CodeDuplicateArrival, "package %s already posted line %s", packageID, lineID).
		WithDetails(map[string]any{"package_id": packageID, "line_id": lineID})
}
