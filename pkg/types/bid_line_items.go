package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Quantity is a measured amount with its unit as bid by the vendor.
// Units are normalized before spread comparison, not at ingest.
type Quantity struct {
	Value float64 `json:"value" validate:"gt=0"`
	Unit  string  `json:"unit" validate:"required"`
}

// BidLineItem is a single priced line inside a vendor bid.
type BidLineItem struct {
	Description  string          `json:"description" validate:"required"`
	Quantity     Quantity        `json:"quantity" validate:"required"`
	UnitPriceUsd decimal.Decimal `json:"unitPriceUsd" validate:"required"`
	TotalUsd     decimal.Decimal `json:"totalUsd" validate:"required"`
}

// BidLineItems is the JSONB column holding every line of a bid.
type BidLineItems []BidLineItem

// Value marshals the lines into JSON for Postgres.
func (b BidLineItems) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	buf, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the slice.
func (b *BidLineItems) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("bid line items: unsupported scan type %T", value)
	}

	var result BidLineItems
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*b = result
	return nil
}

// Subtotal sums the line totals.
func (b BidLineItems) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range b {
		total = total.Add(line.TotalUsd)
	}
	return total
}
