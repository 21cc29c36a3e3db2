package bidspread

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/bids"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/locks"
	"github.com/dealguardhq/dealguard-backend/pkg/metrics"
)

const gateName = "G2"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type dealFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Deal, error)
}

type policyResolver interface {
	Resolve(ctx context.Context, region, grade string) (*models.Policy, error)
}

type ledgerAwarder interface {
	RecordAward(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, subtotal decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error)
}

type eventAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input events.AppendInput) (*models.Event, error)
}

// AwardInput asks the gate to award one bid among its trade siblings.
type AwardInput struct {
	BidID  uuid.UUID
	DealID uuid.UUID
	Actor  string
}

// NormalizedBid is one sibling restated for comparison.
type NormalizedBid struct {
	BidID      uuid.UUID        `json:"bidId"`
	VendorID   uuid.UUID        `json:"vendorId"`
	VendorName string           `json:"vendorName,omitempty"`
	TotalUsd   float64          `json:"totalUsd"`
	Outlier    bool             `json:"outlier,omitempty"`
	Lines      []NormalizedLine `json:"lines,omitempty"`
}

// Decision is the spread gate's verdict over the full sibling set.
type Decision struct {
	Status            string          `json:"status"`
	EventID           uuid.UUID       `json:"eventId"`
	Trade             string          `json:"trade"`
	SpreadPct         float64         `json:"spreadPct"`
	MaxSpreadPct      float64         `json:"maxSpreadPct"`
	Bids              []NormalizedBid `json:"bids"`
	CommittedTradeUsd float64         `json:"committedTradeUsd,omitempty"`
	CommittedTotalUsd float64         `json:"committedTotalUsd,omitempty"`
}

const (
	statusAwarded = "AWARDED"
	statusBlocked = "BLOCKED_G2"
)

// Service awards a bid only when the competing bids for the same trade
// agree closely enough that the price is credible.
type Service interface {
	Award(ctx context.Context, input AwardInput) (*Decision, error)
}

type service struct {
	bids    bids.Repository
	deals   dealFinder
	policy  policyResolver
	ledgers ledgerAwarder
	events  eventAppender
	tx      txRunner
	locker  locks.DealLocker
	metrics *metrics.GateMetrics
}

func NewService(bidsRepo bids.Repository, deals dealFinder, policySvc policyResolver, ledgers ledgerAwarder, eventsSvc eventAppender, tx txRunner, locker locks.DealLocker, gateMetrics *metrics.GateMetrics) (Service, error) {
	if bidsRepo == nil {
		return nil, errors.New("bids repository is required")
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
		bids:    bidsRepo,
		deals:   deals,
		policy:  policySvc,
		ledgers: ledgers,
		events:  eventsSvc,
		tx:      tx,
		locker:  locker,
		metrics: gateMetrics,
	}, nil
}

func (s *service) Award(ctx context.Context, input AwardInput) (*Decision, error) {
	started := time.Now()
	if input.BidID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid id is required")
	}

	target, err := s.bids.FindByID(ctx, input.BidID)
	if err != nil {
		return nil, err
	}
	if input.DealID != uuid.Nil && target.DealID != input.DealID {
		// A bid reached through the wrong deal is treated as absent.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
	}
	if target.Status != enums.BidStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bid already decided")
	}

	deal, err := s.deals.FindByID(ctx, target.DealID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Resolve(ctx, deal.Region, deal.Grade)
	if err != nil {
		return nil, err
	}

	siblings, err := s.bids.ListByDealTrade(ctx, target.DealID, target.Trade)
	if err != nil {
		return nil, err
	}

	normalized := make([]NormalizedBid, 0, len(siblings))
	totals := make([]float64, 0, len(siblings))
	for _, sibling := range siblings {
		lines, total, err := normalizeLines(sibling.LineItems)
		if err != nil {
			return nil, err
		}
		entry := NormalizedBid{
			BidID:    sibling.ID,
			VendorID: sibling.VendorID,
			TotalUsd: total,
			Lines:    lines,
		}
		if sibling.Vendor != nil {
			entry.VendorName = sibling.Vendor.Name
		}
		normalized = append(normalized, entry)
		totals = append(totals, total)
	}

	spreadPct, err := spreadOver(totals)
	if err != nil {
		return nil, err
	}
	markOutliers(normalized, totals)

	decision := &Decision{
		Trade:        target.Trade,
		SpreadPct:    spreadPct,
		MaxSpreadPct: policy.MaxBidSpreadPct,
		Bids:         normalized,
	}

	approved := spreadPct <= policy.MaxBidSpreadPct

	release, err := s.locker.AcquireDeal(ctx, deal.ID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = release.Release(ctx) }()

	if approved {
		err = s.awardTx(ctx, target, deal, policy, decision, input.Actor)
	} else {
		err = s.blockTx(ctx, target, deal, decision, input.Actor)
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		action := enums.EventActionAward
		if !approved {
			action = enums.EventActionBlock
		}
		s.metrics.IncDecision(gateName, string(action))
		s.metrics.ObserveLatency(gateName, time.Since(started))
	}

	if !approved {
		return decision, pkgerrors.New(pkgerrors.CodeGuardrail, "bid spread exceeds the policy limit").
			WithDetails(decision)
	}
	return decision, nil
}

func (s *service) awardTx(ctx context.Context, target *models.Bid, deal *models.Deal, policy *models.Policy, decision *Decision, actor string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bids.WithTx(tx)

		// Re-read the sibling set inside the transaction: a bid submitted and
		// awarded since the pre-lock read must not yield a second award for
		// the trade. The partial unique index on bids backs this check.
		siblings, err := repo.ListByDealTrade(ctx, deal.ID, target.Trade)
		if err != nil {
			return err
		}
		rejected := make([]uuid.UUID, 0, len(siblings))
		for _, sibling := range siblings {
			if sibling.ID == target.ID {
				continue
			}
			if sibling.Status == enums.BidStatusAwarded {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "trade already has an awarded bid")
			}
			if sibling.Status == enums.BidStatusPending {
				rejected = append(rejected, sibling.ID)
			}
		}
		if err := repo.UpdateStatuses(ctx, target.ID, rejected); err != nil {
			return err
		}

		row, err := s.ledgers.RecordAward(ctx, tx, deal.ID, target.Trade, target.SubtotalUsd, policy)
		if err != nil {
			return err
		}
		decision.CommittedTradeUsd = row.Committed.Get(target.Trade).InexactFloat64()
		decision.CommittedTotalUsd = row.CommittedTotalUsd.InexactFloat64()

		event, err := s.events.Append(ctx, tx, events.AppendInput{
			DealID:     deal.ID,
			Gate:       gateName,
			Actor:      actor,
			Artifact:   enums.EventArtifactBid,
			ArtifactID: target.ID,
			Action:     enums.EventActionAward,
			Before:     map[string]any{"status": enums.BidStatusPending},
			After:      map[string]any{"status": enums.BidStatusAwarded, "rejectedSiblings": len(rejected)},
			Metadata: map[string]any{
				"trade":        target.Trade,
				"spreadPct":    decision.SpreadPct,
				"maxSpreadPct": decision.MaxSpreadPct,
				"subtotalUsd":  target.SubtotalUsd.InexactFloat64(),
			},
		})
		if err != nil {
			return err
		}
		decision.Status = statusAwarded
		decision.EventID = event.ID
		return nil
	})
}

func (s *service) blockTx(ctx context.Context, target *models.Bid, deal *models.Deal, decision *Decision, actor string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event, err := s.events.Append(ctx, tx, events.AppendInput{
			DealID:     deal.ID,
			Gate:       gateName,
			Actor:      actor,
			Artifact:   enums.EventArtifactBid,
			ArtifactID: target.ID,
			Action:     enums.EventActionBlock,
			Metadata: map[string]any{
				"trade":        target.Trade,
				"spreadPct":    decision.SpreadPct,
				"maxSpreadPct": decision.MaxSpreadPct,
				"bids":         decision.Bids,
			},
		})
		if err != nil {
			return err
		}
		decision.Status = statusBlocked
		decision.EventID = event.ID
		return nil
	})
}

// spreadOver computes (max - min) / min over the full sibling population so
// one low outlier cannot mask how far apart the rest sit.
func spreadOver(totals []float64) (float64, error) {
	if len(totals) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "no sibling bids to compare")
	}
	min, max := totals[0], totals[0]
	for _, total := range totals[1:] {
		if total < min {
			min = total
		}
		if total > max {
			max = total
		}
	}
	if min <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "bids must have a positive normalized total")
	}
	return (max - min) / min * 100, nil
}

// markOutliers flags bids more than one spread-width from the median.
func markOutliers(bids []NormalizedBid, totals []float64) {
	if len(totals) < 2 {
		return
	}
	sorted := make([]float64, len(totals))
	copy(sorted, totals)
	sort.Float64s(sorted)

	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}
	width := sorted[len(sorted)-1] - sorted[0]
	if width <= 0 {
		return
	}
	for i := range bids {
		if math.Abs(bids[i].TotalUsd-median) > width {
			bids[i].Outlier = true
		}
	}
}
