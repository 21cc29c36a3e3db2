package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// ChangeOrder is a mid-project scope change evaluated against exposure and
// ROI before any budget mutation. SimResults freezes the what-if projection
// that backed the decision.
type ChangeOrder struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID      uuid.UUID               `gorm:"column:deal_id;type:uuid;not null;index"`
	Trade       string                  `gorm:"column:trade;not null"`
	Description string                  `gorm:"column:description;not null"`
	DeltaUsd    decimal.Decimal         `gorm:"column:delta_usd;type:numeric(14,2);not null"`
	DelayDays   int                     `gorm:"column:delay_days;not null;default:0"`
	Status      enums.ChangeOrderStatus `gorm:"column:status;type:change_order_status_enum;not null;default:'proposed'"`
	SimResults  *types.SimSnapshot      `gorm:"column:sim_results;type:jsonb"`
	DecidedBy   string                  `gorm:"column:decided_by"`
	DecidedAt   *time.Time              `gorm:"column:decided_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}
