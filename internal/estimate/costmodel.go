package estimate

import (
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// ProjectionInput carries the deal economics a what-if projection starts
// from. Exposure reuses the frozen intake estimate so before/after compare
// against the same distribution instead of a fresh stochastic run.
type ProjectionInput struct {
	Estimate          types.EstimateSummary
	CommittedTotalUsd float64
	ActualsTotalUsd   float64
	PurchasePriceUsd  float64
	ArvUsd            float64
	ScheduleDays      int
}

// CostModel projects deal cost, exposure, and ROI deterministically from a
// prior simulation. The same input always yields the same projection.
type CostModel struct{}

// Project returns the before and after views of a proposed cost delta.
func (CostModel) Project(in ProjectionInput, deltaUsd float64, delayDays int) (before, after types.SimProjection) {
	before = projectionAt(in, 0, 0)
	after = projectionAt(in, deltaUsd, delayDays)
	return before, after
}

// Deltas subtracts before from after field by field.
func (CostModel) Deltas(before, after types.SimProjection) types.SimProjection {
	return types.SimProjection{
		TotalCostUsd: after.TotalCostUsd - before.TotalCostUsd,
		ExposureUsd:  after.ExposureUsd - before.ExposureUsd,
		RoiPct:       after.RoiPct - before.RoiPct,
		ScheduleDays: after.ScheduleDays - before.ScheduleDays,
	}
}

func projectionAt(in ProjectionInput, deltaUsd float64, delayDays int) types.SimProjection {
	// Projected cost is the larger of what we have committed and the
	// simulated baseline; commitments above baseline shift exposure by the
	// same amount since the tail moves with the center.
	totalCost := in.Estimate.BaselineUsd
	if in.CommittedTotalUsd > totalCost {
		totalCost = in.CommittedTotalUsd
	}
	totalCost += deltaUsd

	drift := totalCost - in.Estimate.BaselineUsd
	exposure := in.Estimate.P80Usd + drift

	invested := in.PurchasePriceUsd + totalCost
	roi := 0.0
	if invested > 0 {
		roi = (in.ArvUsd - invested) / invested * 100
	}

	return types.SimProjection{
		TotalCostUsd: totalCost,
		ExposureUsd:  exposure,
		RoiPct:       roi,
		ScheduleDays: in.ScheduleDays + delayDays,
	}
}
