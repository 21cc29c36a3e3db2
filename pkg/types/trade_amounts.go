package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TradeAmounts maps trade names to USD amounts, persisted as JSONB.
type TradeAmounts map[string]decimal.Decimal

// Value marshals the map into JSON for Postgres.
func (t TradeAmounts) Value() (driver.Value, error) {
	if t == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the map.
func (t *TradeAmounts) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("trade amounts: unsupported scan type %T", value)
	}

	result := make(TradeAmounts)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*t = result
	return nil
}

// Total sums every trade amount.
func (t TradeAmounts) Total() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range t {
		total = total.Add(amount)
	}
	return total
}

// Get returns the amount for trade, zero when absent.
func (t TradeAmounts) Get(trade string) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	return t[trade]
}

// Clone returns an independent copy so callers can mutate safely.
func (t TradeAmounts) Clone() TradeAmounts {
	if t == nil {
		return TradeAmounts{}
	}
	out := make(TradeAmounts, len(t))
	for trade, amount := range t {
		out[trade] = amount
	}
	return out
}

// WithAdded returns a copy with amount added to the trade bucket.
func (t TradeAmounts) WithAdded(trade string, amount decimal.Decimal) TradeAmounts {
	out := t.Clone()
	out[trade] = out[trade].Add(amount)
	return out
}

// Trades returns the trade names in sorted order.
func (t TradeAmounts) Trades() []string {
	names := make([]string, 0, len(t))
	for trade := range t {
		names = append(names, trade)
	}
	sort.Strings(names)
	return names
}
