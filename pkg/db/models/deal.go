package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// Deal is a renovation project under evaluation.
type Deal struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Address          string                 `gorm:"column:address;not null"`
	Region           string                 `gorm:"column:region;not null"`
	Grade            string                 `gorm:"column:grade;not null"`
	PolicyID         uuid.UUID              `gorm:"column:policy_id;type:uuid;not null"`
	Policy           *Policy                `gorm:"foreignKey:PolicyID"`
	PurchasePriceUsd decimal.Decimal        `gorm:"column:purchase_price_usd;type:numeric(14,2);not null"`
	ArvUsd           decimal.Decimal        `gorm:"column:arv_usd;type:numeric(14,2);not null"`
	// Investor-set limits, independent of the policy. Gates apply the tighter
	// of the deal and policy values.
	MaxExposureUsd decimal.Decimal `gorm:"column:max_exposure_usd;type:numeric(14,2);not null"`
	TargetRoiPct   float64         `gorm:"column:target_roi_pct;type:numeric(6,2);not null"`
	Status           enums.DealStatus       `gorm:"column:status;type:deal_status_enum;not null;default:'underwriting'"`
	Estimate         *types.EstimateSummary `gorm:"column:estimate;type:jsonb"`
	PolicyFallback   bool                   `gorm:"column:policy_fallback;not null;default:false"`
	ScopeNodes       []ScopeNode            `gorm:"foreignKey:DealID"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
