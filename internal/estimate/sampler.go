package estimate

import (
	"math"
	"math/rand"
)

// sampleTriangular draws from a triangular distribution over [low, high]
// with mode at likely, via inverse transform sampling.
func sampleTriangular(rng *rand.Rand, low, likely, high float64) float64 {
	if high <= low {
		return low
	}
	u := rng.Float64()
	cut := (likely - low) / (high - low)
	if u < cut {
		return low + math.Sqrt(u*(high-low)*(likely-low))
	}
	return high - math.Sqrt((1-u)*(high-low)*(high-likely))
}

// sampleLognormal draws from a lognormal centered on the likely cost. The
// shape parameter comes from the low/high range (treated as a 90% interval)
// widened by the trade's historical variance.
func sampleLognormal(rng *rand.Rand, low, likely, high, histVariancePct float64) float64 {
	if likely <= 0 {
		return likely
	}
	sigma := 0.1
	if high > low && low > 0 {
		// 90% of mass between low and high: z(0.95)-z(0.05) = 3.29.
		sigma = math.Log(high/low) / 3.29
	}
	sigma *= 1 + histVariancePct/100
	mu := math.Log(likely)
	return math.Exp(mu + sigma*rng.NormFloat64())
}

// percentile returns the p-th percentile (0..100) of sorted samples with
// linear interpolation between order statistics.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
