package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// Service owns the single budget row per deal. Mutations run inside the
// caller's transaction and under the caller's per-deal lock; the service
// itself only applies pure snapshot transforms and writes the result.
type Service interface {
	Init(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, baseline types.TradeAmounts, contingencyUsd decimal.Decimal) (*models.BudgetLedger, error)
	Get(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error)
	RecordAward(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, subtotal decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error)
	RecordInvoice(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, amount decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error)
	RecordChangeOrder(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, delta decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("ledger repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Init(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, baseline types.TradeAmounts, contingencyUsd decimal.Decimal) (*models.BudgetLedger, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger init requires a transaction")
	}
	if dealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}

	row := &models.BudgetLedger{
		DealID:                  dealID,
		ContingencyRemainingUsd: contingencyUsd,
	}
	snap := Snapshot{
		Baseline:                baseline.Clone(),
		Committed:               types.TradeAmounts{},
		Actuals:                 types.TradeAmounts{},
		ContingencyRemainingUsd: contingencyUsd,
	}
	snap.ApplyToModel(row, types.VarianceMap{})

	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) Get(ctx context.Context, dealID uuid.UUID) (*models.BudgetLedger, error) {
	if dealID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal id is required")
	}
	return s.repo.FindByDealID(ctx, dealID)
}

func (s *service) RecordAward(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, subtotal decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error) {
	return s.mutate(ctx, tx, dealID, policy, func(snap Snapshot) Snapshot {
		return snap.ApplyAward(trade, subtotal)
	})
}

func (s *service) RecordInvoice(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, amount decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error) {
	return s.mutate(ctx, tx, dealID, policy, func(snap Snapshot) Snapshot {
		return snap.ApplyInvoice(trade, amount)
	})
}

func (s *service) RecordChangeOrder(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, trade string, delta decimal.Decimal, policy *models.Policy) (*models.BudgetLedger, error) {
	if !delta.IsPositive() {
		// Approved zero-delta and credit change orders leave the budget alone.
		return s.Get(ctx, dealID)
	}
	return s.mutate(ctx, tx, dealID, policy, func(snap Snapshot) Snapshot {
		return snap.ApplyChangeOrder(trade, delta)
	})
}

func (s *service) mutate(ctx context.Context, tx *gorm.DB, dealID uuid.UUID, policy *models.Policy, apply func(Snapshot) Snapshot) (*models.BudgetLedger, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger mutation requires a transaction")
	}
	if policy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger mutation requires a policy")
	}

	repo := s.repo.WithTx(tx)
	row, err := repo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	next := apply(SnapshotFromModel(row))
	next.ApplyToModel(row, next.Variance(policy))

	if err := repo.Save(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}
