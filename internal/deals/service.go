package deals

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/internal/estimate"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/pagination"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type policyResolver interface {
	Resolve(ctx context.Context, region, grade string) (*models.Policy, error)
}

type ledgerInitializer interface {
	Init(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, baseline types.TradeAmounts, contingencyUsd decimal.Decimal) (*models.BudgetLedger, error)
}

// ScopeItemInput is one trade line on an intake request.
type ScopeItemInput struct {
	Trade           string
	Description     string
	CostLowUsd      decimal.Decimal
	CostLikelyUsd   decimal.Decimal
	CostHighUsd     decimal.Decimal
	Distribution    enums.CostDistribution
	HistVariancePct float64
	IsCritical      bool
}

// CreateDealInput captures a deal at underwriting intake. MaxExposureUsd and
// TargetRoiPct are the investor's own limits, recorded alongside the policy's.
type CreateDealInput struct {
	Address          string
	Region           string
	Grade            string
	PurchasePriceUsd decimal.Decimal
	ArvUsd           decimal.Decimal
	MaxExposureUsd   decimal.Decimal
	TargetRoiPct     float64
	Scope            []ScopeItemInput
}

// EstimateInput tunes a re-estimate of an existing deal.
type EstimateInput struct {
	DealID uuid.UUID
	Runs   int
	Seed   int64
}

// ListResult is one page of deals.
type ListResult struct {
	Deals      []models.Deal
	NextCursor string
}

// Service owns deal intake and the probabilistic cost estimate attached to
// each deal. Intake seeds the budget ledger from the scope's likely costs
// plus the policy's contingency allowance.
type Service interface {
	Create(ctx context.Context, input CreateDealInput) (*models.Deal, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Deal, error)
	List(ctx context.Context, params pagination.Params) (*ListResult, error)
	Estimate(ctx context.Context, input EstimateInput) (*types.EstimateSummary, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	policy  policyResolver
	engine  estimate.Engine
	ledgers ledgerInitializer
}

func NewService(repo Repository, tx txRunner, policySvc policyResolver, engine estimate.Engine, ledgers ledgerInitializer) (Service, error) {
	if repo == nil {
		return nil, errors.New("deals repository is required")
	}
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if policySvc == nil {
		return nil, errors.New("policy service is required")
	}
	if engine == nil {
		return nil, errors.New("estimate engine is required")
	}
	if ledgers == nil {
		return nil, errors.New("ledger service is required")
	}
	return &service{repo: repo, tx: tx, policy: policySvc, engine: engine, ledgers: ledgers}, nil
}

func (s *service) Create(ctx context.Context, input CreateDealInput) (*models.Deal, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	policy, err := s.policy.Resolve(ctx, input.Region, input.Grade)
	if err != nil {
		return nil, err
	}

	deal := &models.Deal{
		Address:          strings.TrimSpace(input.Address),
		Region:           strings.ToLower(strings.TrimSpace(input.Region)),
		Grade:            strings.ToLower(strings.TrimSpace(input.Grade)),
		PolicyID:         policy.ID,
		PurchasePriceUsd: input.PurchasePriceUsd,
		ArvUsd:           input.ArvUsd,
		MaxExposureUsd:   input.MaxExposureUsd,
		TargetRoiPct:     input.TargetRoiPct,
		Status:           enums.DealStatusUnderwriting,
	}
	baseline := types.TradeAmounts{}
	for _, item := range input.Scope {
		distribution := item.Distribution
		if distribution == "" {
			distribution = enums.CostDistributionTriangular
		}
		deal.ScopeNodes = append(deal.ScopeNodes, models.ScopeNode{
			Trade:           strings.ToLower(strings.TrimSpace(item.Trade)),
			Description:     strings.TrimSpace(item.Description),
			CostLowUsd:      item.CostLowUsd,
			CostLikelyUsd:   item.CostLikelyUsd,
			CostHighUsd:     item.CostHighUsd,
			Distribution:    distribution,
			HistVariancePct: item.HistVariancePct,
			IsCritical:      item.IsCritical,
		})
		baseline = baseline.WithAdded(strings.ToLower(strings.TrimSpace(item.Trade)), item.CostLikelyUsd)
	}

	summary, err := s.engine.Run(ctx, scopeItems(deal.ScopeNodes), estimate.RunOptions{})
	if err != nil {
		return nil, err
	}
	deal.Estimate = summary

	contingency := baseline.Total().
		Mul(decimal.NewFromFloat(policy.ContingencyPct)).
		Div(decimal.NewFromInt(100)).
		Round(2)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, deal); err != nil {
			return err
		}
		_, err := s.ledgers.Init(ctx, tx, deal.ID, baseline, contingency)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, limit+1, cursor)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Deals: rows}
	if len(rows) > limit {
		result.Deals = rows[:limit]
		last := result.Deals[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return result, nil
}

func (s *service) Estimate(ctx context.Context, input EstimateInput) (*types.EstimateSummary, error) {
	deal, err := s.Get(ctx, input.DealID)
	if err != nil {
		return nil, err
	}

	summary, err := s.engine.Run(ctx, scopeItems(deal.ScopeNodes), estimate.RunOptions{
		Runs: input.Runs,
		Seed: input.Seed,
	})
	if err != nil {
		return nil, err
	}

	deal.Estimate = summary
	if err := s.repo.Save(ctx, deal); err != nil {
		return nil, err
	}
	return summary, nil
}

func scopeItems(nodes []models.ScopeNode) []estimate.ScopeItem {
	return estimate.ScopeItemsFromNodes(nodes)
}

func validateCreate(input CreateDealInput) error {
	if strings.TrimSpace(input.Address) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}
	if strings.TrimSpace(input.Region) == "" || strings.TrimSpace(input.Grade) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "region and grade are required")
	}
	if !input.PurchasePriceUsd.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase price must be positive")
	}
	if !input.ArvUsd.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "arv must be positive")
	}
	if !input.MaxExposureUsd.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "max exposure must be positive")
	}
	if input.TargetRoiPct <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "target roi must be positive")
	}
	if len(input.Scope) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one scope item is required")
	}
	for _, item := range input.Scope {
		if strings.TrimSpace(item.Trade) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "scope items require a trade")
		}
		if item.CostLowUsd.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("scope item %q has a negative low cost", item.Trade))
		}
		if item.CostLowUsd.Cmp(item.CostLikelyUsd) > 0 || item.CostLikelyUsd.Cmp(item.CostHighUsd) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("scope item %q must order low <= likely <= high", item.Trade))
		}
		if item.Distribution != "" && !item.Distribution.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("scope item %q has an unknown distribution", item.Trade))
		}
	}
	return nil
}
