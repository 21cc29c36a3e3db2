package enums

import "fmt"

// VarianceTier classifies how far actual spend has drifted past budget.
type VarianceTier string

const (
	VarianceTierGreen VarianceTier = "GREEN"
	VarianceTier1     VarianceTier = "TIER1"
	VarianceTier2     VarianceTier = "TIER2"
)

var validVarianceTiers = []VarianceTier{
	VarianceTierGreen,
	VarianceTier1,
	VarianceTier2,
}

// IsValid reports whether the value matches the canonical variance tier enum.
func (t VarianceTier) IsValid() bool {
	for _, candidate := range validVarianceTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Rank orders tiers by severity so callers can take the worse of two.
func (t VarianceTier) Rank() int {
	switch t {
	case VarianceTier1:
		return 1
	case VarianceTier2:
		return 2
	default:
		return 0
	}
}

// WorseOf returns the more severe of the two tiers.
func WorseOf(a, b VarianceTier) VarianceTier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseVarianceTier converts raw input into VarianceTier.
func ParseVarianceTier(value string) (VarianceTier, error) {
	for _, candidate := range validVarianceTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid variance tier %q", value)
}
