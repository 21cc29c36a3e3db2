package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CostDriver names a trade and its share of simulated outcome variance.
type CostDriver struct {
	Trade           string  `json:"trade"`
	ContributionUsd float64 `json:"contributionUsd"`
	ContributionPct float64 `json:"contributionPct"`
}

// EstimateSummary is the persisted result of a cost simulation run.
// Once written it is never recomputed in place; re-estimates produce a
// fresh summary.
type EstimateSummary struct {
	Runs        int                `json:"runs"`
	Seed        int64              `json:"seed"`
	BaselineUsd float64            `json:"baselineUsd"`
	MeanUsd     float64            `json:"meanUsd"`
	StdDevUsd   float64            `json:"stdDevUsd"`
	P50Usd      float64            `json:"p50Usd"`
	P80Usd      float64            `json:"p80Usd"`
	P95Usd      float64            `json:"p95Usd"`
	ByTrade     map[string]float64 `json:"byTrade,omitempty"`
	Drivers     []CostDriver       `json:"drivers,omitempty"`
}

// Value marshals the summary into JSON for Postgres.
func (s EstimateSummary) Value() (driver.Value, error) {
	buf, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the summary.
func (s *EstimateSummary) Scan(value interface{}) error {
	if value == nil {
		*s = EstimateSummary{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("estimate summary: unsupported scan type %T", value)
	}

	return json.Unmarshal(raw, s)
}
