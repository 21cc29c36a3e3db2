package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
)

// Invoice is a vendor charge against a deal's budget. Negative amounts are
// credits and flow through the same variance checks.
type Invoice struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DealID    uuid.UUID           `gorm:"column:deal_id;type:uuid;not null;index"`
	VendorID  uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	BidID     *uuid.UUID          `gorm:"column:bid_id;type:uuid"`
	Trade     string              `gorm:"column:trade;not null"`
	AmountUsd decimal.Decimal     `gorm:"column:amount_usd;type:numeric(14,2);not null"`
	Memo      string              `gorm:"column:memo"`
	Status    enums.InvoiceStatus `gorm:"column:status;type:invoice_status_enum;not null;default:'pending'"`
	DecidedAt *time.Time          `gorm:"column:decided_at"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
}
