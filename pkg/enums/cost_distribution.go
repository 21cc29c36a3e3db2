package enums

import "fmt"

// CostDistribution selects the sampling distribution for a scope node.
type CostDistribution string

const (
	CostDistributionTriangular CostDistribution = "triangular"
	CostDistributionLogNormal  CostDistribution = "lognormal"
)

var validCostDistributions = []CostDistribution{
	CostDistributionTriangular,
	CostDistributionLogNormal,
}

// IsValid reports whether the value matches the canonical distribution enum.
func (d CostDistribution) IsValid() bool {
	for _, candidate := range validCostDistributions {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseCostDistribution converts raw input into CostDistribution.
func ParseCostDistribution(value string) (CostDistribution, error) {
	for _, candidate := range validCostDistributions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cost distribution %q", value)
}
