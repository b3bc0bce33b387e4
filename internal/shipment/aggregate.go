// Package shipment derives cargo specs (gross weight, volume) from the
// current line items of a quote or cart. The outputs are system-derived and
// read-only so displayed cargo figures can never drift from actual contents.
package shipment

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/numeric"
)

// Line is one quote line contributing to the shipment.
type Line struct {
	Quantity int
	// WeightKg is the per-unit product weight. Zero when unknown.
	WeightKg decimal.Decimal
	// Dimensions is the free-text product dimension string "A x B x C" in
	// meters, as captured upstream.
	Dimensions string
}

// Totals aggregates the physical shipment figures for a set of lines.
type Totals struct {
	WeightKg decimal.Decimal `json:"weightKg"`
	VolumeM3 decimal.Decimal `json:"volumeM3"`
	// SkippedDimensions holds the indices of lines whose dimension string
	// did not parse. Those lines contribute zero volume; the caller logs
	// them, non-fatally.
	SkippedDimensions []int `json:"-"`
}

// Dims is a parsed three-axis dimension measurement in meters.
type Dims struct {
	Length decimal.Decimal
	Width  decimal.Decimal
	Height decimal.Decimal
}

// Volume returns length*width*height.
func (d Dims) Volume() decimal.Decimal {
	return d.Length.Mul(d.Width).Mul(d.Height)
}

// ParseDimensions interprets a free-text "A x B x C" string. The separator
// may be x, X, * or ×, and each token tolerates locale decimal separators.
// All three tokens must parse as positive numbers.
func ParseDimensions(s string) (Dims, bool) {
	normalized := strings.NewReplacer("X", "x", "*", "x", "×", "x").Replace(strings.TrimSpace(s))
	parts := strings.Split(normalized, "x")
	if len(parts) != 3 {
		return Dims{}, false
	}
	values := make([]decimal.Decimal, 3)
	for i, part := range parts {
		v := numeric.Amount(strings.TrimSpace(part))
		if v.Sign() <= 0 {
			return Dims{}, false
		}
		values[i] = v
	}
	return Dims{Length: values[0], Width: values[1], Height: values[2]}, true
}

// Aggregate computes total gross weight and volume across lines. It is a
// pure function of the provided slice and must be recomputed whenever items
// or quantities change.
func Aggregate(lines []Line) Totals {
	var totals Totals
	totals.WeightKg = decimal.Zero
	totals.VolumeM3 = decimal.Zero
	for i, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		factor := decimal.NewFromInt(int64(qty))
		if line.WeightKg.Sign() > 0 {
			totals.WeightKg = totals.WeightKg.Add(line.WeightKg.Mul(factor))
		}
		if strings.TrimSpace(line.Dimensions) == "" {
			continue
		}
		dims, ok := ParseDimensions(line.Dimensions)
		if !ok {
			totals.SkippedDimensions = append(totals.SkippedDimensions, i)
			continue
		}
		totals.VolumeM3 = totals.VolumeM3.Add(dims.Volume().Mul(factor))
	}
	return totals
}
