package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// Snapshot is the value-type view of a deal's budget. Transforms return a
// new snapshot and never touch the receiver, so they can be tested without
// storage and applied under the per-deal lock.
type Snapshot struct {
	Baseline                types.TradeAmounts
	Committed               types.TradeAmounts
	Actuals                 types.TradeAmounts
	ContingencyRemainingUsd decimal.Decimal
}

// SnapshotFromModel lifts a persisted row into a snapshot.
func SnapshotFromModel(row *models.BudgetLedger) Snapshot {
	return Snapshot{
		Baseline:                row.Baseline.Clone(),
		Committed:               row.Committed.Clone(),
		Actuals:                 row.Actuals.Clone(),
		ContingencyRemainingUsd: row.ContingencyRemainingUsd,
	}
}

// ApplyToModel writes the snapshot back onto a row, recomputing every total
// from its trade map so a stale aggregate can never persist.
func (s Snapshot) ApplyToModel(row *models.BudgetLedger, variance types.VarianceMap) {
	row.Baseline = s.Baseline.Clone()
	row.BaselineTotalUsd = s.Baseline.Total()
	row.Committed = s.Committed.Clone()
	row.CommittedTotalUsd = s.Committed.Total()
	row.Actuals = s.Actuals.Clone()
	row.ActualsTotalUsd = s.Actuals.Total()
	row.Variance = variance
	row.ContingencyRemainingUsd = s.ContingencyRemainingUsd
}

// ApplyAward folds an awarded bid's subtotal into the committed map.
func (s Snapshot) ApplyAward(trade string, subtotal decimal.Decimal) Snapshot {
	out := s.clone()
	out.Committed = out.Committed.WithAdded(trade, subtotal)
	return out
}

// ApplyInvoice folds an invoice amount into the actuals map.
func (s Snapshot) ApplyInvoice(trade string, amount decimal.Decimal) Snapshot {
	out := s.clone()
	out.Actuals = out.Actuals.WithAdded(trade, amount)
	return out
}

// ApplyChangeOrder folds an approved change-order delta into the committed
// map and draws the same amount from the contingency reserve.
func (s Snapshot) ApplyChangeOrder(trade string, delta decimal.Decimal) Snapshot {
	out := s.clone()
	out.Committed = out.Committed.WithAdded(trade, delta)
	out.ContingencyRemainingUsd = out.ContingencyRemainingUsd.Sub(delta)
	return out
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Baseline:                s.Baseline.Clone(),
		Committed:               s.Committed.Clone(),
		Actuals:                 s.Actuals.Clone(),
		ContingencyRemainingUsd: s.ContingencyRemainingUsd,
	}
}

// ReferenceFor returns the budget an invoice is judged against: committed
// spend for the trade when any exists, the baseline otherwise.
func (s Snapshot) ReferenceFor(trade string) decimal.Decimal {
	if committed := s.Committed.Get(trade); committed.IsPositive() {
		return committed
	}
	return s.Baseline.Get(trade)
}

func (s Snapshot) referenceTotal() decimal.Decimal {
	if committed := s.Committed.Total(); committed.IsPositive() {
		return committed
	}
	return s.Baseline.Total()
}

// Variance classifies drift for every trade with actual spend plus the
// deal-level total, against the policy's tier thresholds.
func (s Snapshot) Variance(policy *models.Policy) types.VarianceMap {
	out := make(types.VarianceMap, len(s.Actuals)+1)
	for _, trade := range s.Actuals.Trades() {
		pct := variancePct(s.Actuals.Get(trade), s.ReferenceFor(trade))
		out[trade] = types.VarianceEntry{
			VariancePct: pct,
			Tier:        classifyTier(pct, policy),
		}
	}
	totalPct := variancePct(s.Actuals.Total(), s.referenceTotal())
	out[types.TotalKey] = types.VarianceEntry{
		VariancePct: totalPct,
		Tier:        classifyTier(totalPct, policy),
	}
	return out
}

// variancePct is zero while spend stays at or under the reference. A trade
// with spend but no budget at all reads as 100 rather than a division by
// zero.
func variancePct(actual, reference decimal.Decimal) float64 {
	if actual.Cmp(reference) <= 0 {
		return 0
	}
	if !reference.IsPositive() {
		return 100
	}
	pct, _ := actual.Sub(reference).Div(reference).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}

func classifyTier(pct float64, policy *models.Policy) enums.VarianceTier {
	abs := pct
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < policy.Tier1VariancePct:
		return enums.VarianceTierGreen
	case abs < policy.Tier2VariancePct:
		return enums.VarianceTier1
	default:
		return enums.VarianceTier2
	}
}
