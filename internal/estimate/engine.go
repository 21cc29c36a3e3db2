package estimate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/dealguardhq/dealguard-backend/pkg/config"
	"github.com/dealguardhq/dealguard-backend/pkg/db/models"
	"github.com/dealguardhq/dealguard-backend/pkg/enums"
	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

const topDrivers = 5

// ScopeItem is one renovation line fed into the sampler.
type ScopeItem struct {
	Trade           string
	Description     string
	LowUsd          float64
	LikelyUsd       float64
	HighUsd         float64
	Distribution    enums.CostDistribution
	HistVariancePct float64
	IsCritical      bool
}

// RunOptions tune a single simulation. A zero Seed picks a fresh one and
// records it on the summary so the run can be replayed.
type RunOptions struct {
	Runs int
	Seed int64
}

// Engine runs Monte Carlo cost simulations over a deal's scope. It holds no
// mutable state across calls; every run draws from its own generator.
type Engine interface {
	Run(ctx context.Context, items []ScopeItem, opts RunOptions) (*types.EstimateSummary, error)
}

type engine struct {
	defaultRuns int
	maxRuns     int
}

func NewEngine(cfg config.EstimationConfig) (Engine, error) {
	if cfg.DefaultRuns <= 0 {
		return nil, fmt.Errorf("estimation default runs must be positive")
	}
	if cfg.MaxRuns < cfg.DefaultRuns {
		return nil, fmt.Errorf("estimation max runs below default")
	}
	return &engine{defaultRuns: cfg.DefaultRuns, maxRuns: cfg.MaxRuns}, nil
}

// ScopeItemsFromNodes converts persisted scope rows into sampler inputs.
func ScopeItemsFromNodes(nodes []models.ScopeNode) []ScopeItem {
	items := make([]ScopeItem, 0, len(nodes))
	for _, node := range nodes {
		items = append(items, ScopeItem{
			Trade:           node.Trade,
			Description:     node.Description,
			LowUsd:          node.CostLowUsd.InexactFloat64(),
			LikelyUsd:       node.CostLikelyUsd.InexactFloat64(),
			HighUsd:         node.CostHighUsd.InexactFloat64(),
			Distribution:    node.Distribution,
			HistVariancePct: node.HistVariancePct,
			IsCritical:      node.IsCritical,
		})
	}
	return items
}

func (e *engine) Run(ctx context.Context, items []ScopeItem, opts RunOptions) (*types.EstimateSummary, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deal has no scope items to estimate")
	}
	for _, item := range items {
		if item.LowUsd > item.LikelyUsd || item.LikelyUsd > item.HighUsd {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("scope item %q has an unordered cost range", item.Trade))
		}
	}

	runs := opts.Runs
	if runs <= 0 {
		runs = e.defaultRuns
	}
	if runs > e.maxRuns {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("runs %d exceeds the maximum of %d", runs, e.maxRuns))
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	totals := make([]float64, runs)
	tradeSamples := make(map[string][]float64, len(items))
	baseline := 0.0
	for _, item := range items {
		baseline += item.LikelyUsd
	}

	for i := 0; i < runs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		perTrade := make(map[string]float64, len(items))
		total := 0.0
		for _, item := range items {
			var draw float64
			switch item.Distribution {
			case enums.CostDistributionLogNormal:
				draw = sampleLognormal(rng, item.LowUsd, item.LikelyUsd, item.HighUsd, item.HistVariancePct)
			default:
				draw = sampleTriangular(rng, item.LowUsd, item.LikelyUsd, item.HighUsd)
			}
			perTrade[item.Trade] += draw
			total += draw
		}
		totals[i] = total
		for trade, amount := range perTrade {
			tradeSamples[trade] = append(tradeSamples[trade], amount)
		}
	}

	sorted := make([]float64, runs)
	copy(sorted, totals)
	sort.Float64s(sorted)

	mean := meanOf(totals)
	summary := &types.EstimateSummary{
		Runs:        runs,
		Seed:        seed,
		BaselineUsd: baseline,
		MeanUsd:     mean,
		StdDevUsd:   stdDevOf(totals, mean),
		P50Usd:      percentile(sorted, 50),
		P80Usd:      percentile(sorted, 80),
		P95Usd:      percentile(sorted, 95),
		ByTrade:     tradeMeans(tradeSamples),
		Drivers:     varianceDrivers(tradeSamples),
	}
	return summary, nil
}

func meanOf(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

func stdDevOf(samples []float64, mean float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	acc := 0.0
	for _, v := range samples {
		d := v - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(samples)-1))
}

func tradeMeans(samples map[string][]float64) map[string]float64 {
	out := make(map[string]float64, len(samples))
	for trade, values := range samples {
		out[trade] = meanOf(values)
	}
	return out
}

// varianceDrivers ranks trades by their share of the total sample variance
// and returns the top contributors.
func varianceDrivers(samples map[string][]float64) []types.CostDriver {
	type tradeVar struct {
		trade  string
		stdDev float64
		varc   float64
	}
	vars := make([]tradeVar, 0, len(samples))
	totalVar := 0.0
	for trade, values := range samples {
		mean := meanOf(values)
		sd := stdDevOf(values, mean)
		vars = append(vars, tradeVar{trade: trade, stdDev: sd, varc: sd * sd})
		totalVar += sd * sd
	}
	sort.Slice(vars, func(i, j int) bool {
		if vars[i].varc == vars[j].varc {
			return vars[i].trade < vars[j].trade
		}
		return vars[i].varc > vars[j].varc
	})

	limit := len(vars)
	if limit > topDrivers {
		limit = topDrivers
	}
	drivers := make([]types.CostDriver, 0, limit)
	for _, tv := range vars[:limit] {
		pct := 0.0
		if totalVar > 0 {
			pct = tv.varc / totalVar * 100
		}
		drivers = append(drivers, types.CostDriver{
			Trade:           tv.trade,
			ContributionUsd: tv.stdDev,
			ContributionPct: pct,
		})
	}
	return drivers
}
