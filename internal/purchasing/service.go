package purchasing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/assetledger/pkg/db/models"
	"github.com/angelmondragon/assetledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/assetledger/pkg/errors"
	"github.com/angelmondragon/assetledger/pkg/logger"
	"github.com/angelmondragon/assetledger/pkg/outbox"
	"github.com/angelmondragon/assetledger/pkg/outbox/payloads"
	"github.com/angelmondragon/assetledger/pkg/validate"
)

const eventSource = "purchasing"

// Service manages purchase order headers, lines and demand links.
type Service interface {
	CreateHeader(ctx context.Context, input CreateHeaderInput) (uuid.UUID, error)
	AddLine(ctx context.Context, input AddLineInput) (uuid.UUID, error)
	LinkDemand(ctx context.Context, input LinkDemandInput) (uuid.UUID, error)
	CloseHeader(ctx context.Context, headerID uuid.UUID, force bool) (enums.PurchaseOrderStatus, error)

	GetHeader(ctx context.Context, headerID uuid.UUID) (*models.PurchaseOrderHeader, error)
	ListLines(ctx context.Context, headerID uuid.UUID) ([]models.PurchaseOrderLine, error)
	HeaderTotal(ctx context.Context, headerID uuid.UUID) (decimal.Decimal, error)
	ListDemandLinks(ctx context.Context, lineID uuid.UUID) ([]models.PartDemandPurchaseOrderLine, error)
}

type CreateHeaderInput struct {
	Vendor       string     `json:"vendor" validate:"required"`
	ExpectedDate *time.Time `json:"expected_date,omitempty"`
}

type AddLineInput struct {
	HeaderID uuid.UUID       `json:"header_id" validate:"required"`
	PartID   string          `json:"part_id" validate:"required"`
	Qty      int             `json:"qty" validate:"gt=0"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type LinkDemandInput struct {
	LineID   uuid.UUID `json:"line_id" validate:"required"`
	DemandID string    `json:"demand_id" validate:"required"`
	Qty      int       `json:"qty" validate:"gt=0"`
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires a purchasing service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Outbox     outboxPublisher
	Logger     *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("purchasing repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   params.Repository,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
	}, nil
}

func (s *service) CreateHeader(ctx context.Context, input CreateHeaderInput) (uuid.UUID, error) {
	input.Vendor = strings.TrimSpace(input.Vendor)
	if err := validate.Struct(input); err != nil {
		return uuid.Nil, err
	}
	header := &models.PurchaseOrderHeader{
		Vendor:       input.Vendor,
		ExpectedDate: input.ExpectedDate,
		Status:       enums.PurchaseOrderStatusOpen,
	}
	if err := s.repo.CreateHeader(ctx, header); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order header")
	}
	s.info(ctx, "purchase_order.created", map[string]any{"header_id": header.ID, "vendor": header.Vendor})
	return header.ID, nil
}

func (s *service) AddLine(ctx context.Context, input AddLineInput) (uuid.UUID, error) {
	input.PartID = strings.TrimSpace(input.PartID)
	if err := validate.Struct(input); err != nil {
		return uuid.Nil, err
	}
	if input.UnitCost.IsNegative() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"unit_cost": "must be greater than or equal to 0"})
	}

	var line *models.PurchaseOrderLine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		header, err := repo.FindHeaderForUpdate(ctx, input.HeaderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order header")
		}
		if header == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "purchase order %s not found", input.HeaderID)
		}
		if header.Status != enums.PurchaseOrderStatusOpen {
			return closedHeaderError(header)
		}
		line = &models.PurchaseOrderLine{
			HeaderID:   header.ID,
			PartID:     input.PartID,
			OrderedQty: input.Qty,
			UnitCost:   input.UnitCost,
		}
		if err := repo.CreateLine(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order line")
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.info(s.partCtx(ctx, line.PartID), "purchase_order.line.added", map[string]any{
		"header_id": line.HeaderID,
		"line_id":   line.ID,
		"qty":       line.OrderedQty,
	})
	return line.ID, nil
}

func (s *service) LinkDemand(ctx context.Context, input LinkDemandInput) (uuid.UUID, error) {
	input.DemandID = strings.TrimSpace(input.DemandID)
	if err := validate.Struct(input); err != nil {
		return uuid.Nil, err
	}

	var link *models.PartDemandPurchaseOrderLine
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		line, err := repo.FindLine(ctx, input.LineID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order line")
		}
		if line == nil {
			return pkgerrors.Newf(pkgerrors.CodeUnknownLine, "purchase order line %s not found", input.LineID)
		}
		ok, err := repo.AddLinked(ctx, line.ID, input.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve line quantity")
		}
		if !ok {
			current, err := repo.FindLine(ctx, line.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase order line")
			}
			return pkgerrors.Newf(pkgerrors.CodeOverAllocation, "line %s cannot link %d more", line.ID, input.Qty).
				WithDetails(map[string]any{
					"line_id":    line.ID,
					"ordered":    current.OrderedQty,
					"linked":     current.LinkedQty,
					"requested":  input.Qty,
					"available":  current.OrderedQty - current.LinkedQty,
				})
		}
		link = &models.PartDemandPurchaseOrderLine{
			DemandID:  input.DemandID,
			LineID:    line.ID,
			LinkedQty: input.Qty,
		}
		if err := repo.CreateDemandLink(ctx, link); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create demand link")
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.info(ctx, "purchase_order.demand.linked", map[string]any{
		"line_id":   link.LineID,
		"demand_id": link.DemandID,
		"qty":       link.LinkedQty,
	})
	return link.ID, nil
}

func (s *service) CloseHeader(ctx context.Context, headerID uuid.UUID, force bool) (enums.PurchaseOrderStatus, error) {
	if headerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "header id required")
	}

	var result enums.PurchaseOrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		header, err := repo.FindHeaderForUpdate(ctx, headerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order header")
		}
		if header == nil {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "purchase order %s not found", headerID)
		}
		if header.Status == enums.PurchaseOrderStatusClosed {
			return closedHeaderError(header)
		}

		lines, err := repo.ListLines(ctx, headerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase order lines")
		}
		short := shortLines(lines)
		if len(short) > 0 && !force {
			return pkgerrors.Newf(pkgerrors.CodeIncompleteReceipt, "purchase order %s has %d short lines", headerID, len(short)).
				WithDetails(map[string]any{"short_line_ids": short})
		}

		result = enums.PurchaseOrderStatusClosed
		if len(short) > 0 {
			result = enums.PurchaseOrderStatusPartiallyClosed
		}
		if result == header.Status {
			return nil
		}

		now := time.Now().UTC()
		ok, err := repo.TransitionHeader(ctx, headerID, header.Status, result, &now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close purchase order header")
		}
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConcurrentModification, "purchase order %s changed while closing", headerID)
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseOrderClosed,
			AggregateType: enums.AggregatePurchaseOrder,
			AggregateID:   headerID.String(),
			Source:        eventSource,
			OccurredAt:    now,
			Data: payloads.PurchaseOrderClosedEvent{
				HeaderID:     headerID,
				Vendor:       header.Vendor,
				Status:       result,
				Forced:       force && len(short) > 0,
				ShortLineIDs: short,
				ClosedAt:     now,
			},
		})
	})
	if err != nil {
		return "", err
	}
	s.info(ctx, "purchase_order.closed", map[string]any{"header_id": headerID, "status": result, "force": force})
	return result, nil
}

func (s *service) GetHeader(ctx context.Context, headerID uuid.UUID) (*models.PurchaseOrderHeader, error) {
	header, err := s.repo.FindHeader(ctx, headerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order header")
	}
	if header == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "purchase order %s not found", headerID)
	}
	return header, nil
}

func (s *service) ListLines(ctx context.Context, headerID uuid.UUID) ([]models.PurchaseOrderLine, error) {
	if _, err := s.GetHeader(ctx, headerID); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, headerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchase order lines")
	}
	return lines, nil
}

// HeaderTotal sums ordered quantity times unit cost over every line.
func (s *service) HeaderTotal(ctx context.Context, headerID uuid.UUID) (decimal.Decimal, error) {
	lines, err := s.ListLines(ctx, headerID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Extended())
	}
	return total, nil
}

func (s *service) ListDemandLinks(ctx context.Context, lineID uuid.UUID) ([]models.PartDemandPurchaseOrderLine, error) {
	line, err := s.repo.FindLine(ctx, lineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order line")
	}
	if line == nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeUnknownLine, "purchase order line %s not found", lineID)
	}
	links, err := s.repo.ListDemandLinks(ctx, lineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list demand links")
	}
	return links, nil
}

func shortLines(lines []models.PurchaseOrderLine) []uuid.UUID {
	var short []uuid.UUID
	for _, line := range lines {
		if line.Remaining() > 0 {
			short = append(short, line.ID)
		}
	}
	return short
}

func closedHeaderError(header *models.PurchaseOrderHeader) error {
	return pkgerrors.Newf(pkgerrors.CodeClosedHeader, "purchase order %s is %s", header.ID, header.Status).
		WithDetails(map[string]any{"header_id": header.ID, "status": header.Status})
}

func (s *service) partCtx(ctx context.Context, partID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithPartID(ctx, partID)
}

func (s *service) info(ctx context.Context, msg string, fields map[string]any) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), msg)
}
