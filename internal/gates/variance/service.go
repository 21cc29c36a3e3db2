package variance

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/internal/invoices"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/locks"
	"github.com/dealguardhq/dealguard-backend/pkg/metrics"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox"
	"github.com/dealguardhq/dealguard-backend/pkg/outbox/payloads"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

const gateName = "G3"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dealFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
}

type vendorFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type policyResolver interface {
	ResolveOrDefault(ctx context.Context, region, grade string) (*models.Policy, bool, error)
}

type ledgerRecorder interface {
	RecordInvoice(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, amount decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error)
}

type eventAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input events.AppendInput) (*models.Event, error)
}

type simulationRequester interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// IngestInput is one vendor invoice submitted against a deal's budget.
type IngestInput struct {
	DealID    uuid.UUID
	VendorID  uuid.UUID
	BidID     *uuid.UUID
	Trade     string
	AmountUsd decimal.Decimal
	Memo      string
	Actor     string
}

// BucketAnalysis restates one variance bucket, either a trade or the deal
// total, for the caller.
type BucketAnalysis struct {
	ActualUsd    float64            `json:"actualUsd"`
	ReferenceUsd float64            `json:"referenceUsd"`
	VariancePct  float64            `json:"variancePct"`
	Tier         enums.VarianceTier `json:"tier"`
}

// Decision is the variance gate's classification of an accepted invoice.
// The invoice is always recorded; the tier only changes what happens next.
type Decision struct {
	InvoiceID           uuid.UUID           `json:"invoiceId"`
	EventID             uuid.UUID           `json:"eventId"`
	Status              enums.InvoiceStatus `json:"status"`
	Tier                enums.VarianceTier  `json:"tier"`
	Trade               string              `json:"trade"`
	TradeAnalysis       BucketAnalysis      `json:"tradeAnalysis"`
	TotalAnalysis       BucketAnalysis      `json:"totalAnalysis"`
	Tier1ThresholdPct   float64             `json:"tier1ThresholdPct"`
	Tier2ThresholdPct   float64             `json:"tier2ThresholdPct"`
	Actions             []enums.GateAction  `json:"actions"`
	PolicyFallback      bool                `json:"policyFallback,omitempty"`
	SimulationRequested bool                `json:"simulationRequested,omitempty"`
}

// Service records invoices and classifies the resulting budget drift.
type Service interface {
	Ingest(ctx context.Context, input IngestInput) (*Decision, error)
}

type service struct {
	invoices invoices.Repository
	deals    dealFinder
	vendors  vendorFinder
	policy   policyResolver
	ledgers  ledgerRecorder
	events   eventAppender
	emitter  simulationRequester
	tx       txRunner
	locker   locks.DealLocker
	metrics  *metrics.GateMetrics
}

func NewService(invoicesRepo invoices.Repository, deals dealFinder, vendors vendorFinder, policySvc policyResolver, ledgers ledgerRecorder, eventsSvc eventAppender, emitter simulationRequester, tx txRunner, locker locks.DealLocker, gateMetrics *metrics.GateMetrics) (Service, error) {
	if invoicesRepo == nil {
		return nil, errors.New("invoices repository is required")
	}
	if deals == nil {
		return nil, errors.New("deal finder is required")
	}
	if vendors == nil {
		return nil, errors.New("vendor finder is required")
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
	if emitter == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if locker == nil {
		return nil, errors.New("deal locker is required")
	}
	return &service{
		invoices: invoicesRepo,
		deals:    deals,
		vendors:  vendors,
		policy:   policySvc,
		ledgers:  ledgers,
		events:   eventsSvc,
		emitter:  emitter,
		tx:       tx,
		locker:   locker,
		metrics:  gateMetrics,
	}, nil
}

func (s *service) Ingest(ctx context.Context, input IngestInput) (*Decision, error) {
	started := time.Now()
	if err := validateIngest(input); err != nil {
		return nil, err
	}

	deal, err := s.deals.FindByID(ctx, input.DealID)
	if err != nil {
		return nil, err
	}
	if _, err := s.vendors.FindByID(ctx, input.VendorID); err != nil {
		return nil, err
	}
	policy, fallback, err := s.policy.ResolveOrDefault(ctx, deal.Region, deal.Grade)
	if err != nil {
		return nil, err
	}

	trade := normalizeTrade(input.Trade)

	release, err := s.locker.AcquireDeal(ctx, deal.ID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = release.Release(ctx) }()

	decision := &Decision{
		Trade:             trade,
		Tier1ThresholdPct: policy.Tier1VariancePct,
		Tier2ThresholdPct: policy.Tier2VariancePct,
		PolicyFallback:    fallback,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		invoice := &models.Invoice{
			DealID:    deal.ID,
			VendorID:  input.VendorID,
			BidID:     input.BidID,
			Trade:     trade,
			AmountUsd: input.AmountUsd,
			Memo:      input.Memo,
			Status:    enums.InvoiceStatusPending,
		}
		repo := s.invoices.WithTx(tx)
		if err := repo.Create(ctx, invoice); err != nil {
			return err
		}
		decision.InvoiceID = invoice.ID

		row, err := s.ledgers.RecordInvoice(ctx, tx, deal.ID, trade, input.AmountUsd, policy)
		if err != nil {
			return err
		}
		decision.TradeAnalysis = bucketFromRow(row, trade)
		decision.TotalAnalysis = totalFromRow(row)
		decision.Tier = enums.WorseOf(decision.TradeAnalysis.Tier, decision.TotalAnalysis.Tier)
		decision.Status = statusForTier(decision.Tier)
		decision.Actions = actionsForTier(decision.Tier)

		now := time.Now().UTC()
		if err := repo.Decide(ctx, invoice.ID, decision.Status, now); err != nil {
			return err
		}

		event, err := s.events.Append(ctx, tx, events.AppendInput{
			DealID:     deal.ID,
			Gate:       gateName,
			Actor:      input.Actor,
			Artifact:   enums.EventArtifactInvoice,
			ArtifactID: invoice.ID,
			Action:     actionForTier(decision.Tier),
			Before:     map[string]any{"status": enums.InvoiceStatusPending},
			After:      map[string]any{"status": decision.Status},
			Metadata: map[string]any{
				"trade":             trade,
				"amountUsd":         input.AmountUsd.InexactFloat64(),
				"tradeAnalysis":     decision.TradeAnalysis,
				"totalAnalysis":     decision.TotalAnalysis,
				"tier1ThresholdPct": policy.Tier1VariancePct,
				"tier2ThresholdPct": policy.Tier2VariancePct,
				"policyFallback":    fallback,
			},
		})
		if err != nil {
			return err
		}
		decision.EventID = event.ID

		if decision.Tier != enums.VarianceTier2 {
			return nil
		}
		return s.requestSimulation(ctx, tx, deal.ID, invoice.ID, trade, input.Actor, decision, now)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncDecision(gateName, string(actionForTier(decision.Tier)))
		s.metrics.ObserveLatency(gateName, time.Since(started))
	}
	return decision, nil
}

// requestSimulation queues a cost-model re-run for a second-tier escalation.
// The outbox insert is at-most-once per deal, so a string of TIER2 invoices
// does not flood the simulation worker.
func (s *service) requestSimulation(ctx context.Context, tx *gorm.DB, dealID, invoiceID uuid.UUID, trade, actor string, decision *Decision, now time.Time) error {
	_, err := s.events.Append(ctx, tx, events.AppendInput{
		DealID:     dealID,
		Gate:       gateName,
		Actor:      actor,
		Artifact:   enums.EventArtifactInvoice,
		ArtifactID: invoiceID,
		Action:     enums.EventActionRequestCOSimulation,
		Metadata: map[string]any{
			"trade":       trade,
			"triggerTier": decision.Tier,
		},
	})
	if err != nil {
		return err
	}

	err = s.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCOGSimulationRequested,
		AggregateType: enums.AggregateDeal,
		AggregateID:   dealID,
		Actor:         actor,
		Version:       1,
		OccurredAt:    now,
		Data: payloads.COGSimulationRequestedEvent{
			DealID:      dealID,
			Trade:       trade,
			TriggerTier: decision.Tier,
			RequestedAt: now,
		},
	})
	if err != nil {
		return err
	}
	decision.SimulationRequested = true
	return nil
}

func validateIngest(input IngestInput) error {
	if input.DealID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	if input.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	if normalizeTrade(input.Trade) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "trade is required")
	}
	if input.AmountUsd.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}
	return nil
}

func bucketFromRow(row *models.BudgetLedger, trade string) BucketAnalysis {
	entry := row.Variance[trade]
	reference := row.Committed.Get(trade)
	if !reference.IsPositive() {
		reference = row.Baseline.Get(trade)
	}
	return BucketAnalysis{
		ActualUsd:    row.Actuals.Get(trade).InexactFloat64(),
		ReferenceUsd: reference.InexactFloat64(),
		VariancePct:  entry.VariancePct,
		Tier:         tierOrGreen(entry.Tier),
	}
}

func totalFromRow(row *models.BudgetLedger) BucketAnalysis {
	entry := row.Variance[types.TotalKey]
	reference := row.CommittedTotalUsd
	if !reference.IsPositive() {
		reference = row.BaselineTotalUsd
	}
	return BucketAnalysis{
		ActualUsd:    row.ActualsTotalUsd.InexactFloat64(),
		ReferenceUsd: reference.InexactFloat64(),
		VariancePct:  entry.VariancePct,
		Tier:         tierOrGreen(entry.Tier),
	}
}

func tierOrGreen(tier enums.VarianceTier) enums.VarianceTier {
	if !tier.IsValid() {
		return enums.VarianceTierGreen
	}
	return tier
}

func statusForTier(tier enums.VarianceTier) enums.InvoiceStatus {
	switch tier {
	case enums.VarianceTier1:
		return enums.InvoiceStatusApprovedWithWarning
	case enums.VarianceTier2:
		return enums.InvoiceStatusFlagged
	default:
		return enums.InvoiceStatusApproved
	}
}

func actionForTier(tier enums.VarianceTier) enums.EventAction {
	switch tier {
	case enums.VarianceTier1:
		return enums.EventActionFlagTier1
	case enums.VarianceTier2:
		return enums.EventActionEscalateTier2
	default:
		return enums.EventActionApprove
	}
}

func actionsForTier(tier enums.VarianceTier) []enums.GateAction {
	switch tier {
	case enums.VarianceTier1:
		return []enums.GateAction{
			enums.GateActionApproveInvoice,
			enums.GateActionFreezeNoncritical,
			enums.GateActionNotifyPM,
		}
	case enums.VarianceTier2:
		return []enums.GateAction{
			enums.GateActionApproveInvoice,
			enums.GateActionEscalateExec,
			enums.GateActionEnqueueCOGSimulation,
			enums.GateActionFreezeAllOptional,
		}
	default:
		return []enums.GateAction{enums.GateActionApproveInvoice}
	}
}

func normalizeTrade(trade string) string {
	return strings.ToLower(strings.TrimSpace(trade))
}
