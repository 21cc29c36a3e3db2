package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Policy is a versioned set of guardrail thresholds for a market region and
// renovation grade. Rows are immutable once referenced by a deal; threshold
// changes ship as a new version.
type Policy struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Region           string          `gorm:"column:region;not null;uniqueIndex:idx_policies_region_grade_version"`
	Grade            string          `gorm:"column:grade;not null;uniqueIndex:idx_policies_region_grade_version"`
	Version          int             `gorm:"column:version;not null;uniqueIndex:idx_policies_region_grade_version"`
	MaxExposureUsd   decimal.Decimal `gorm:"column:max_exposure_usd;type:numeric(14,2);not null"`
	MaxBidSpreadPct  float64         `gorm:"column:max_bid_spread_pct;not null"`
	Tier1VariancePct float64         `gorm:"column:tier1_variance_pct;not null"`
	Tier2VariancePct float64         `gorm:"column:tier2_variance_pct;not null"`
	MinRoiPct        float64         `gorm:"column:min_roi_pct;not null"`
	ContingencyPct   float64         `gorm:"column:contingency_pct;not null"`
	ChangeOrderSlaHours int          `gorm:"column:change_order_sla_hours;not null;default:48"`
	IsDefault        bool            `gorm:"column:is_default;not null;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Policy) TableName() string {
	return "policies"
}
