package bidspread

import (
	"fmt"
	"strings"

	pkgerrors "github.com/dealguardhq/dealguard-backend/pkg/errors"
	"github.com/dealguardhq/dealguard-backend/pkg/types"
)

// measure groups units that describe the same physical dimension. Prices
// are only comparable per canonical unit within one measure.
type measure string

const (
	measureArea   measure = "sqft"
	measureLinear measure = "lf"
	measureCount  measure = "each"
	measureLump   measure = "lump"
)

type unitDef struct {
	measure measure
	// factor converts one stated unit into canonical units of its
	// measure, e.g. one roofing square is 100 sqft.
	factor float64
}

var unitTable = map[string]unitDef{
	"sf":     {measureArea, 1},
	"sqft":   {measureArea, 1},
	"sq ft":  {measureArea, 1},
	"square": {measureArea, 100},
	"sq":     {measureArea, 100},
	"lf":     {measureLinear, 1},
	"ln ft":  {measureLinear, 1},
	"ea":     {measureCount, 1},
	"each":   {measureCount, 1},
	"unit":   {measureCount, 1},
	"ls":     {measureLump, 1},
	"lump":   {measureLump, 1},
	"job":    {measureLump, 1},
}

// NormalizedLine is a bid line restated in canonical units.
type NormalizedLine struct {
	Description       string  `json:"description"`
	Measure           string  `json:"measure"`
	CanonicalQty      float64 `json:"canonicalQty"`
	PricePerCanonical float64 `json:"pricePerCanonical"`
	TotalUsd          float64 `json:"totalUsd"`
}

// normalizeLines restates every line in canonical units and recomputes the
// bid total from quantity times unit price. An unrecognized unit is a
// validation error, never silently skipped.
func normalizeLines(lines types.BidLineItems) ([]NormalizedLine, float64, error) {
	out := make([]NormalizedLine, 0, len(lines))
	total := 0.0
	for i, line := range lines {
		unit := strings.ToLower(strings.TrimSpace(line.Quantity.Unit))
		def, ok := unitTable[unit]
		if !ok {
			return nil, 0, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("line %d uses unrecognized unit %q", i+1, line.Quantity.Unit))
		}

		canonicalQty := line.Quantity.Value * def.factor
		unitPrice := line.UnitPriceUsd.InexactFloat64()
		lineTotal := line.Quantity.Value * unitPrice

		pricePerCanonical := 0.0
		if canonicalQty > 0 {
			pricePerCanonical = lineTotal / canonicalQty
		}

		out = append(out, NormalizedLine{
			Description:       line.Description,
			Measure:           string(def.measure),
			CanonicalQty:      canonicalQty,
			PricePerCanonical: pricePerCanonical,
			TotalUsd:          lineTotal,
		})
		total += lineTotal
	}
	return out, total, nil
}
