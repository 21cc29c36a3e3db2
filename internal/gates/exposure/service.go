package exposure

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/deals"
	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/internal/events"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/metrics"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

const gateName = "G1"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type policyResolver interface {
	Resolve(ctx context.Context, region, grade string) (*models.Policy, error)
}

type eventAppender interface {
	Append(ctx context.Context, tx *gorm.DB, input events.AppendInput) (*models.Event, error)
}

// EvaluateInput triggers the exposure check for a deal.
type EvaluateInput struct {
	DealID uuid.UUID
	Actor  string
	Runs   int
	Seed   int64
}

// Decision is the exposure gate's verdict and the numbers behind it.
type Decision struct {
	Status               string             `json:"status"`
	EventID              uuid.UUID          `json:"eventId"`
	P50Usd               float64            `json:"p50Usd"`
	P80Usd               float64            `json:"p80Usd"`
	P95Usd               float64            `json:"p95Usd"`
	MaxExposureUsd       float64            `json:"maxExposureUsd"`
	TargetRoiPct         float64            `json:"targetRoiPct"`
	ContingencyTargetPct float64            `json:"contingencyTargetPct"`
	HeadroomUsd          float64            `json:"headroomUsd,omitempty"`
	HeadroomPct          float64            `json:"headroomPct,omitempty"`
	OverByUsd            float64            `json:"overByUsd,omitempty"`
	OverByPct            float64            `json:"overByPct,omitempty"`
	Drivers              []types.CostDriver `json:"drivers,omitempty"`
}

const (
	statusApproved = "APPROVED"
	statusBlocked  = "BLOCKED_G1"
)

// Service is the go/no-go exposure check run before money is committed.
// It never touches the budget ledger.
type Service interface {
	Evaluate(ctx context.Context, input EvaluateInput) (*Decision, error)
}

type service struct {
	deals   deals.Repository
	policy  policyResolver
	engine  estimate.Engine
	events  eventAppender
	tx      txRunner
	metrics *metrics.GateMetrics
}

func NewService(dealsRepo deals.Repository, policySvc policyResolver, engine estimate.Engine, eventsSvc eventAppender, tx txRunner, gateMetrics *metrics.GateMetrics) (Service, error) {
	if dealsRepo == nil {
		return nil, errors.New("deal store is required")
	}
	if policySvc == nil {
		return nil, errors.New("policy service is required")
	}
	if engine == nil {
		return nil, errors.New("estimate engine is required")
	}
	if eventsSvc == nil {
		return nil, errors.New("events service is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &service{deals: dealsRepo, policy: policySvc, engine: engine, events: eventsSvc, tx: tx, metrics: gateMetrics}, nil
}

func (s *service) Evaluate(ctx context.Context, input EvaluateInput) (*Decision, error) {
	started := time.Now()
	if input.DealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}

	deal, err := s.deals.FindByID(ctx, input.DealID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policy.Resolve(ctx, deal.Region, deal.Grade)
	if err != nil {
		return nil, err
	}

	summary, err := s.engine.Run(ctx, estimate.ScopeItemsFromNodes(deal.ScopeNodes), estimate.RunOptions{
		Runs: input.Runs,
		Seed: input.Seed,
	})
	if err != nil {
		return nil, err
	}

	// The investor's own cap tightens the policy cap when set.
	maxExposure := policy.MaxExposureUsd.InexactFloat64()
	if dealCap := deal.MaxExposureUsd.InexactFloat64(); dealCap > 0 && dealCap < maxExposure {
		maxExposure = dealCap
	}
	targetRoi := policy.MinRoiPct
	if deal.TargetRoiPct > targetRoi {
		targetRoi = deal.TargetRoiPct
	}
	approved := summary.P80Usd <= maxExposure

	decision := &Decision{
		P50Usd:               summary.P50Usd,
		P80Usd:               summary.P80Usd,
		P95Usd:               summary.P95Usd,
		MaxExposureUsd:       maxExposure,
		TargetRoiPct:         targetRoi,
		ContingencyTargetPct: policy.ContingencyPct,
		Drivers:              summary.Drivers,
	}

	action := enums.EventActionApprove
	var metadata map[string]any
	if approved {
		decision.Status = statusApproved
		decision.HeadroomUsd = maxExposure - summary.P80Usd
		if maxExposure > 0 {
			decision.HeadroomPct = decision.HeadroomUsd / maxExposure * 100
		}
		metadata = map[string]any{
			"p50Usd":         summary.P50Usd,
			"p80Usd":         summary.P80Usd,
			"p95Usd":         summary.P95Usd,
			"maxExposureUsd": maxExposure,
			"headroomUsd":    decision.HeadroomUsd,
			"headroomPct":    decision.HeadroomPct,
		}
	} else {
		action = enums.EventActionBlock
		decision.Status = statusBlocked
		decision.OverByUsd = summary.P80Usd - maxExposure
		if maxExposure > 0 {
			decision.OverByPct = decision.OverByUsd / maxExposure * 100
		}
		metadata = map[string]any{
			"p80Usd":         summary.P80Usd,
			"maxExposureUsd": maxExposure,
			"overByUsd":      decision.OverByUsd,
			"overByPct":      decision.OverByPct,
			"drivers":        summary.Drivers,
		}
	}

	statusBefore := deal.Status
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deal.Estimate = summary
		if approved {
			deal.Status = enums.DealStatusApproved
		} else {
			deal.Status = enums.DealStatusBlocked
		}
		if err := s.deals.WithTx(tx).Save(ctx, deal); err != nil {
			return err
		}

		event, err := s.events.Append(ctx, tx, events.AppendInput{
			DealID:     deal.ID,
			Gate:       gateName,
			Actor:      input.Actor,
			Artifact:   enums.EventArtifactDeal,
			ArtifactID: deal.ID,
			Action:     action,
			Before:     map[string]any{"status": statusBefore},
			After:      map[string]any{"status": deal.Status},
			Metadata:   metadata,
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
		s.metrics.IncDecision(gateName, string(action))
		s.metrics.ObserveLatency(gateName, time.Since(started))
		s.metrics.ObserveSimulationRuns(summary.Runs)
	}

	if !approved {
		return decision, pkgerrors.New(pkgerrors.CodeGuardrail, "projected exposure exceeds the policy cap").
			WithDetails(decision)
	}
	return decision, nil
}
