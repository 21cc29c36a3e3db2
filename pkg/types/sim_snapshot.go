package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SimProjection is one side of a change-order what-if: projected deal
// economics either before or after the proposed delta.
type SimProjection struct {
	TotalCostUsd float64 `json:"totalCostUsd"`
	ExposureUsd  float64 `json:"exposureUsd"`
	RoiPct       float64 `json:"roiPct"`
	ScheduleDays int     `json:"scheduleDays"`
}

// SimSnapshot freezes the what-if projection backing a change-order
// decision. Later ledger activity never rewrites a decided snapshot.
type SimSnapshot struct {
	Before     SimProjection `json:"before"`
	After      SimProjection `json:"after"`
	Deltas     SimProjection `json:"deltas"`
	Violations []string      `json:"violations,omitempty"`
}

// Value marshals the snapshot into JSON for Postgres.
func (s SimSnapshot) Value() (driver.Value, error) {
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the snapshot.
func (s *SimSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = SimSnapshot{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("sim snapshot: unsupported scan type %T", value)
	}

	return json.Unmarshal(raw, s)
}
