package estimate

import (
	"context"
	"math"
	"testing"

	"github.com/dealguardhq/dealguard-backend/pkg/config"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
)

func testEngine(t *testing.T) Engine {
	t.Helper()
	eng, err := NewEngine(config.EstimationConfig{DefaultRuns: 1000, MaxRuns: 20000})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func sampleScope() []ScopeItem {
	return []ScopeItem{
		{Trade: "roofing", LowUsd: 8000, LikelyUsd: 10000, HighUsd: 15000, Distribution: enums.CostDistributionTriangular},
		{Trade: "plumbing", LowUsd: 4000, LikelyUsd: 5000, HighUsd: 9000, Distribution: enums.CostDistributionLogNormal, HistVariancePct: 12},
		{Trade: "electrical", LowUsd: 3000, LikelyUsd: 3500, HighUsd: 4200, Distribution: enums.CostDistributionTriangular},
	}
}

func TestRunDeterministicUnderFixedSeed(t *testing.T) {
	eng := testEngine(t)
	opts := RunOptions{Runs: 500, Seed: 42}

	first, err := eng.Run(context.Background(), sampleScope(), opts)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := eng.Run(context.Background(), sampleScope(), opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.P50Usd != second.P50Usd || first.P80Usd != second.P80Usd || first.P95Usd != second.P95Usd {
		t.Fatalf("seeded runs diverged: %+v vs %+v", first, second)
	}
	if first.Seed != 42 {
		t.Fatalf("expected recorded seed 42, got %d", first.Seed)
	}
}

func TestRunPercentilesOrderedAndBounded(t *testing.T) {
	eng := testEngine(t)

	summary, err := eng.Run(context.Background(), sampleScope(), RunOptions{Seed: 7})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Runs != 1000 {
		t.Fatalf("expected default 1000 runs, got %d", summary.Runs)
	}
	if !(summary.P50Usd <= summary.P80Usd && summary.P80Usd <= summary.P95Usd) {
		t.Fatalf("percentiles out of order: %+v", summary)
	}
	if summary.BaselineUsd != 18500 {
		t.Fatalf("expected baseline 18500, got %f", summary.BaselineUsd)
	}
	// Triangular draws stay inside their range; lognormal tails stay near
	// it, so the total should land in a sane band around the baseline.
	if summary.P50Usd < 15000 || summary.P95Usd > 40000 {
		t.Fatalf("simulated totals implausible: %+v", summary)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	eng := testEngine(t)

	if _, err := eng.Run(context.Background(), nil, RunOptions{}); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for empty scope, got %v", err)
	}

	bad := []ScopeItem{{Trade: "roofing", LowUsd: 12000, LikelyUsd: 10000, HighUsd: 15000}}
	if _, err := eng.Run(context.Background(), bad, RunOptions{}); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for unordered range, got %v", err)
	}

	if _, err := eng.Run(context.Background(), sampleScope(), RunOptions{Runs: 20001}); pkgerrors.As(err) == nil {
		t.Fatalf("expected validation error for runs over cap, got %v", err)
	}
}

func TestRunRanksVarianceDrivers(t *testing.T) {
	eng := testEngine(t)

	items := []ScopeItem{
		{Trade: "roofing", LowUsd: 5000, LikelyUsd: 10000, HighUsd: 30000, Distribution: enums.CostDistributionTriangular},
		{Trade: "paint", LowUsd: 1900, LikelyUsd: 2000, HighUsd: 2100, Distribution: enums.CostDistributionTriangular},
	}
	summary, err := eng.Run(context.Background(), items, RunOptions{Runs: 2000, Seed: 11})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(summary.Drivers) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(summary.Drivers))
	}
	if summary.Drivers[0].Trade != "roofing" {
		t.Fatalf("expected the wide range to dominate variance, got %q", summary.Drivers[0].Trade)
	}
	totalPct := summary.Drivers[0].ContributionPct + summary.Drivers[1].ContributionPct
	if math.Abs(totalPct-100) > 0.01 {
		t.Fatalf("driver percentages should sum to 100, got %f", totalPct)
	}
}

func TestRunCapsDriverList(t *testing.T) {
	eng := testEngine(t)

	items := make([]ScopeItem, 0, 8)
	trades := []string{"roofing", "plumbing", "electrical", "hvac", "framing", "drywall", "paint", "flooring"}
	for _, trade := range trades {
		items = append(items, ScopeItem{Trade: trade, LowUsd: 1000, LikelyUsd: 2000, HighUsd: 4000})
	}

	summary, err := eng.Run(context.Background(), items, RunOptions{Runs: 300, Seed: 3})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(summary.Drivers) != 5 {
		t.Fatalf("expected driver list capped at 5, got %d", len(summary.Drivers))
	}
	if len(summary.ByTrade) != len(trades) {
		t.Fatalf("expected per-trade means for every trade, got %d", len(summary.ByTrade))
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	if got := percentile(sorted, 50); got != 25 {
		t.Fatalf("expected interpolated median 25, got %f", got)
	}
	if got := percentile(sorted, 0); got != 10 {
		t.Fatalf("expected min at p0, got %f", got)
	}
	if got := percentile(sorted, 100); got != 40 {
		t.Fatalf("expected max at p100, got %f", got)
	}
}
