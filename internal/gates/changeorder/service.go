package changeorder

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/changeorders"
	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/locks"
	"github.com/dealguardhq/dealguard-backend/pkg/metrics"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

const gateName = "G4"

// Violation identifiers recorded on a denied change order.
const (
	ViolationExposureCap = "EXPOSURE_CAP_EXCEEDED"
	ViolationRoiFloor    = "ROI_BELOW_MINIMUM"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dealFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
}

type policyResolver interface {
	Resolve(ctx context.Context, region, grade string) (*models.Policy, error)
}

type ledgerService interface {
	Get(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error)
	RecordChangeOrder(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, delta decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error)
}

type eventAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input events.AppendInput) (*models.Event, error)
}

// ProposeInput is a mid-project scope change up for decision.
type ProposeInput struct {
	DealID      uuid.UUID
	Trade       string
	Description string
	DeltaUsd    decimal.Decimal
	DelayDays   int
	Actor       string
}

// Decision is the change-order gate's verdict with the frozen what-if
// projection that backed it.
type Decision struct {
	ChangeOrderID           uuid.UUID               `json:"changeOrderId"`
	EventID                 uuid.UUID               `json:"eventId"`
	Status                  enums.ChangeOrderStatus `json:"status"`
	Sim                     types.SimSnapshot       `json:"sim"`
	MaxExposureUsd          float64                 `json:"maxExposureUsd"`
	MinRoiPct               float64                 `json:"minRoiPct"`
	CommittedTradeUsd       float64                 `json:"committedTradeUsd,omitempty"`
	CommittedTotalUsd       float64                 `json:"committedTotalUsd,omitempty"`
	ContingencyRemainingUsd float64                 `json:"contingencyRemainingUsd,omitempty"`
}

// Service decides change orders against the deal's frozen estimate. A denial
// is a recorded outcome, not an error; only the approval mutates the budget.
type Service interface {
	Propose(ctx context.Context, input ProposeInput) (*Decision, error)
}

type service struct {
	orders  changeorders.Repository
	deals   dealFinder
	policy  policyResolver
	ledgers ledgerService
	model   estimate.CostModel
	events  eventAppender
	tx      txRunner
	locker  locks.DealLocker
	metrics *metrics.GateMetrics
}

func NewService(ordersRepo changeorders.Repository, deals dealFinder, policySvc policyResolver, ledgers ledgerService, eventsSvc eventAppender, tx txRunner, locker locks.DealLocker, gateMetrics *metrics.GateMetrics) (Service, error) {
	if ordersRepo == nil {
		return nil, errors.New("change orders repository is required")
	}
	if deals == nil {
		return nil, errors.New("deal finder is required")
	}
	if policySvc == nil {
		return nil, errors.New("policy service is required")
	}
	if ledgers == nil {
		return nil, errors.New("ledger service is required")
	}
	if eventsSvc == nil {
		return nil, errors.New("events service is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if locker == nil {
		return nil, errors.New("deal locker is required")
	}
	return &service{
		orders:  ordersRepo,
		deals:   deals,
		policy:  policySvc,
		ledgers: ledgers,
		events:  eventsSvc,
		tx:      tx,
		locker:  locker,
		metrics: gateMetrics,
	}, nil
}

func (s *service) Propose(ctx context.Context, input ProposeInput) (*Decision, error) {
	started := time.Now()
	if err := validatePropose(input); err != nil {
		return nil, err
	}

	deal, err := s.deals.FindByID(ctx, input.DealID)
	if err != nil {
		return nil, err
	}
	if deal.Estimate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "deal has no estimate, run the exposure gate first")
	}
	policy, err := s.policy.Resolve(ctx, deal.Region, deal.Grade)
	if err != nil {
		return nil, err
	}

	trade := strings.ToLower(strings.TrimSpace(input.Trade))

	release, err := s.locker.AcquireDeal(ctx, deal.ID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = release.Release(ctx) }()

	row, err := s.ledgers.Get(ctx, deal.ID)
	if err != nil {
		return nil, err
	}

	before, after := s.model.Project(estimate.ProjectionInput{
		Estimate:          *deal.Estimate,
		CommittedTotalUsd: row.CommittedTotalUsd.InexactFloat64(),
		ActualsTotalUsd:   row.ActualsTotalUsd.InexactFloat64(),
		PurchasePriceUsd:  deal.PurchasePriceUsd.InexactFloat64(),
		ArvUsd:            deal.ArvUsd.InexactFloat64(),
	}, input.DeltaUsd.InexactFloat64(), input.DelayDays)

	// The investor's own limits tighten the policy's when set.
	maxExposure := policy.MaxExposureUsd.InexactFloat64()
	if dealCap := deal.MaxExposureUsd.InexactFloat64(); dealCap > 0 && dealCap < maxExposure {
		maxExposure = dealCap
	}
	minRoi := policy.MinRoiPct
	if deal.TargetRoiPct > minRoi {
		minRoi = deal.TargetRoiPct
	}

	snapshot := types.SimSnapshot{
		Before: before,
		After:  after,
		Deltas: s.model.Deltas(before, after),
	}
	if after.ExposureUsd > maxExposure {
		snapshot.Violations = append(snapshot.Violations, ViolationExposureCap)
	}
	if after.RoiPct < minRoi {
		snapshot.Violations = append(snapshot.Violations, ViolationRoiFloor)
	}
	approved := len(snapshot.Violations) == 0

	decision := &Decision{
		Sim:            snapshot,
		MaxExposureUsd: maxExposure,
		MinRoiPct:      minRoi,
	}
	if approved {
		decision.Status = enums.ChangeOrderStatusApproved
	} else {
		decision.Status = enums.ChangeOrderStatusDenied
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		order := &models.ChangeOrder{
			DealID:      deal.ID,
			Trade:       trade,
			Description: input.Description,
			DeltaUsd:    input.DeltaUsd,
			DelayDays:   input.DelayDays,
			Status:      decision.Status,
			SimResults:  &snapshot,
			DecidedBy:   input.Actor,
			DecidedAt:   &now,
		}
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		decision.ChangeOrderID = order.ID

		// Committed only ratchets up: zero and credit deltas are recorded on
		// the order but never reduce the budget.
		if approved && input.DeltaUsd.IsPositive() {
			updated, err := s.ledgers.RecordChangeOrder(ctx, tx, deal.ID, trade, input.DeltaUsd, policy)
			if err != nil {
				return err
			}
			decision.CommittedTradeUsd = updated.Committed.Get(trade).InexactFloat64()
			decision.CommittedTotalUsd = updated.CommittedTotalUsd.InexactFloat64()
			decision.ContingencyRemainingUsd = updated.ContingencyRemainingUsd.InexactFloat64()
		}

		action := enums.EventActionApproveChangeOrder
		if !approved {
			action = enums.EventActionDenyChangeOrder
		}
		event, err := s.events.Append(ctx, tx, events.AppendInput{
			DealID:     deal.ID,
			Gate:       gateName,
			Actor:      input.Actor,
			Artifact:   enums.EventArtifactChangeOrder,
			ArtifactID: order.ID,
			Action:     action,
			Before:     map[string]any{"status": enums.ChangeOrderStatusProposed},
			After:      map[string]any{"status": decision.Status},
			Metadata: map[string]any{
				"trade":          trade,
				"deltaUsd":       input.DeltaUsd.InexactFloat64(),
				"delayDays":      input.DelayDays,
				"sim":            snapshot,
				"maxExposureUsd": maxExposure,
				"minRoiPct":      minRoi,
			},
		})
		if err != nil {
			return err
		}
		decision.EventID = event.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		action := enums.EventActionApproveChangeOrder
		if !approved {
			action = enums.EventActionDenyChangeOrder
		}
		s.metrics.IncDecision(gateName, string(action))
		s.metrics.ObserveLatency(gateName, time.Since(started))
	}
	return decision, nil
}

func validatePropose(input ProposeInput) error {
	if input.DealID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	if strings.TrimSpace(input.Trade) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "trade is required")
	}
	if strings.TrimSpace(input.Description) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if input.DelayDays < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delay days must not be negative")
	}
	return nil
}
