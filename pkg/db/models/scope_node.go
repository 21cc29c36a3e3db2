package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
)

// ScopeNode is one line of renovation work with its three-point cost range.
type ScopeNode struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID          uuid.UUID              `gorm:"column:deal_id;type:uuid;not null;index"`
	Trade           string                 `gorm:"column:trade;not null"`
	Description     string                 `gorm:"column:description;not null"`
	CostLowUsd      decimal.Decimal        `gorm:"column:cost_low_usd;type:numeric(14,2);not null"`
	CostLikelyUsd   decimal.Decimal        `gorm:"column:cost_likely_usd;type:numeric(14,2);not null"`
	CostHighUsd     decimal.Decimal        `gorm:"column:cost_high_usd;type:numeric(14,2);not null"`
	Distribution    enums.CostDistribution `gorm:"column:distribution;type:cost_distribution_enum;not null;default:'triangular'"`
	HistVariancePct float64                `gorm:"column:hist_variance_pct;not null;default:0"`
	IsCritical      bool                   `gorm:"column:is_critical;not null;default:false"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}
