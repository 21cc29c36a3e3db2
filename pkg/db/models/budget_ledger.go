package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// BudgetLedger is the single budget row per deal. Totals are derived from
// the trade maps on every write and never adjusted independently.
type BudgetLedger struct {
	ID                      uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID                  uuid.UUID          `gorm:"column:deal_id;type:uuid;not null;uniqueIndex"`
	Baseline                types.TradeAmounts `gorm:"column:baseline;type:jsonb;not null"`
	BaselineTotalUsd        decimal.Decimal    `gorm:"column:baseline_total_usd;type:numeric(14,2);not null"`
	Committed               types.TradeAmounts `gorm:"column:committed;type:jsonb;not null"`
	CommittedTotalUsd       decimal.Decimal    `gorm:"column:committed_total_usd;type:numeric(14,2);not null"`
	Actuals                 types.TradeAmounts `gorm:"column:actuals;type:jsonb;not null"`
	ActualsTotalUsd         decimal.Decimal    `gorm:"column:actuals_total_usd;type:numeric(14,2);not null"`
	Variance                types.VarianceMap  `gorm:"column:variance;type:jsonb;not null"`
	ContingencyRemainingUsd decimal.Decimal    `gorm:"column:contingency_remaining_usd;type:numeric(14,2);not null"`
	UpdatedAt               time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (BudgetLedger) TableName() string {
	return "budget_ledgers"
}
