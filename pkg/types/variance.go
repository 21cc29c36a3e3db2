package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/dealguardhq/dealguard-backend/pkg/enums"
)

// VarianceEntry captures per-trade drift between actual spend and budget.
type VarianceEntry struct {
	VariancePct float64            `json:"variancePct"`
	Tier        enums.VarianceTier `json:"tier"`
}

// VarianceMap maps trade names to variance entries, persisted as JSONB.
// The reserved key "total" carries the deal-level aggregate.
type VarianceMap map[string]VarianceEntry

// TotalKey is the reserved aggregate bucket inside a VarianceMap.
const TotalKey = "total"

// Value marshals the map into JSON for Postgres.
func (m VarianceMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the map.
func (m *VarianceMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("variance map: unsupported scan type %T", value)
	}

	result := make(VarianceMap)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*m = result
	return nil
}

// WorstTier scans every entry and returns the most severe tier present.
func (m VarianceMap) WorstTier() enums.VarianceTier {
	worst := enums.VarianceTierGreen
	for _, entry := range m {
		worst = enums.WorseOf(worst, entry.Tier)
	}
	return worst
}
