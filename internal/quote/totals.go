package quote

import (
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/numeric"
)

// Anomaly labels a totals-level data inconsistency. Anomalous figures are
// rendered as computed and flagged for operator review, never clamped:
// clamping would hide a real data-entry defect.
type Anomaly string

const (
	// AnomalyNegativeTotal marks a grand total below zero.
	AnomalyNegativeTotal Anomaly = "negative_total_source"
	// AnomalyClampedInput marks an additive input that arrived negative
	// and was coerced to zero before composition.
	AnomalyClampedInput Anomaly = "negative_additive_input"
)

// ComposeInput carries the figures feeding the totals composition.
// Subtotal, Discount and NationalFreight are source-currency amounts;
// the international figures are target-currency amounts.
type ComposeInput struct {
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	NationalFreight decimal.Decimal

	InternationalFreight   decimal.Decimal
	InternationalInsurance decimal.Decimal
	CustomsFees            decimal.Decimal

	Converter *fx.Converter
}

// Totals is the composed, full-precision result. It is computed exactly once
// per engine invocation and fanned out unmodified to every render surface.
type Totals struct {
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	NationalFreight decimal.Decimal

	TotalSource decimal.Decimal
	TotalTarget decimal.Decimal

	InternationalFreight   decimal.Decimal
	InternationalInsurance decimal.Decimal
	CustomsFees            decimal.Decimal

	TotalInternationalTarget decimal.Decimal
	TotalCIFTarget           decimal.Decimal

	Anomalies []Anomaly
}

// Flagged reports whether the given anomaly was observed.
func (t Totals) Flagged(a Anomaly) bool {
	for _, got := range t.Anomalies {
		if got == a {
			return true
		}
	}
	return false
}

// ComposeTotals combines subtotal, discount and freight figures into the
// final bi-currency totals and the CIF figure:
//
//	totalSource = subtotal - discount + nationalFreight
//	totalTarget = totalSource / rate
//	totalIntl   = intlFreight + intlInsurance + customs
//	totalCIF    = totalTarget + totalIntl
//
// International costs are additive-only and coerced non-negative, so
// totalCIF >= totalTarget always holds. A negative totalSource is reported
// as-is with an anomaly flag.
func ComposeTotals(in ComposeInput) Totals {
	var anomalies []Anomaly

	clamp := func(d decimal.Decimal) decimal.Decimal {
		v, clamped := numeric.NonNegative(d)
		if clamped {
			anomalies = append(anomalies, AnomalyClampedInput)
		}
		return v
	}

	discount := clamp(in.Discount)
	nationalFreight := clamp(in.NationalFreight)
	intlFreight := clamp(in.InternationalFreight)
	intlInsurance := clamp(in.InternationalInsurance)
	customs := clamp(in.CustomsFees)

	totalSource := in.Subtotal.Sub(discount).Add(nationalFreight)
	if totalSource.Sign() < 0 {
		anomalies = append(anomalies, AnomalyNegativeTotal)
	}

	conv := in.Converter
	if conv == nil {
		conv = fx.NewConverter(fx.Rate{})
	}
	totalTarget := conv.ToTarget(totalSource)
	totalIntl := intlFreight.Add(intlInsurance).Add(customs)

	return Totals{
		Subtotal:        in.Subtotal,
		Discount:        discount,
		NationalFreight: nationalFreight,

		TotalSource: totalSource,
		TotalTarget: totalTarget,

		InternationalFreight:   intlFreight,
		InternationalInsurance: intlInsurance,
		CustomsFees:            customs,

		TotalInternationalTarget: totalIntl,
		TotalCIFTarget:           totalTarget.Add(totalIntl),

		Anomalies: anomalies,
	}
}
