package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// Bid is a vendor's priced proposal for one trade on a deal. Line items are
// kept verbatim as submitted; unit normalization happens at comparison time.
type Bid struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID      uuid.UUID          `gorm:"column:deal_id;type:uuid;not null;index:idx_bids_deal_trade"`
	VendorID    uuid.UUID          `gorm:"column:vendor_id;type:uuid;not null"`
	Vendor      *Vendor            `gorm:"foreignKey:VendorID"`
	Trade       string             `gorm:"column:trade;not null;index:idx_bids_deal_trade"`
	LineItems   types.BidLineItems `gorm:"column:line_items;type:jsonb;not null"`
	SubtotalUsd decimal.Decimal    `gorm:"column:subtotal_usd;type:numeric(14,2);not null"`
	Status      enums.BidStatus    `gorm:"column:status;type:bid_status_enum;not null;default:'pending'"`
	SubmittedAt time.Time          `gorm:"column:submitted_at;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
