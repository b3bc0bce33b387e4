// Package discount infers the discount percentage actually applied to a
// quote line. Declared discount fields are known to go stale upstream, while
// quantity*unitPrice versus the declared line total is the one pair of
// numbers that must agree; recomputing from that pair is the robust signal.
package discount

import "github.com/shopspring/decimal"

// TrustTolerance is the relative tolerance (against the undiscounted line
// value) within which a declared discount is considered consistent with the
// declared line total. Chosen at 1%: tight enough to catch stale defaults,
// loose enough to absorb upstream rounding.
var TrustTolerance = decimal.RequireFromString("0.01")

// Anomaly labels a data inconsistency observed while reconciling. Anomalies
// are diagnostic only; they are logged or counted, never raised as errors.
type Anomaly string

const (
	// AnomalyNegativeTotal marks a declared line total below zero.
	AnomalyNegativeTotal Anomaly = "negative_declared_total"
	// AnomalyDeclaredMismatch marks a declared discount that does not
	// reproduce the declared total and had to be back-solved.
	AnomalyDeclaredMismatch Anomaly = "declared_discount_mismatch"
	// AnomalyPercentClamped marks a back-solved percentage outside [0,100].
	AnomalyPercentClamped Anomaly = "percent_clamped"
)

var (
	hundred = decimal.NewFromInt(100)
)

// Resolution is the outcome of reconciling one line item.
type Resolution struct {
	// Percent is the effective discount in [0,100].
	Percent decimal.Decimal
	// BackSolved reports whether Percent was derived from the declared
	// total rather than taken from the declared discount field.
	BackSolved bool
	Anomalies  []Anomaly
}

// Flagged reports whether the given anomaly was observed.
func (r Resolution) Flagged(a Anomaly) bool {
	for _, got := range r.Anomalies {
		if got == a {
			return true
		}
	}
	return false
}

// Reconcile determines the discount actually applied to a line.
//
// Let expected = qty * unitPrice. A declared percent within [0,100] is
// trusted when applying it to expected reproduces declaredTotal within
// TrustTolerance. Otherwise the percent is back-solved as
// (1 - declaredTotal/expected) * 100 and clamped to [0,100].
func Reconcile(qty int, unitPrice, declaredTotal, declaredPercent decimal.Decimal) Resolution {
	if qty < 1 {
		qty = 1
	}
	expected := unitPrice.Mul(decimal.NewFromInt(int64(qty)))

	if expected.IsZero() {
		return Resolution{Percent: decimal.Zero}
	}
	if declaredTotal.Sign() < 0 {
		return Resolution{
			Percent:   decimal.Zero,
			Anomalies: []Anomaly{AnomalyNegativeTotal},
		}
	}

	if inRange(declaredPercent) && consistent(expected, declaredTotal, declaredPercent) {
		return Resolution{Percent: declaredPercent}
	}

	res := Resolution{BackSolved: true}
	if inRange(declaredPercent) {
		// The declared field was plausible on its own but contradicts the
		// total; record the disagreement for the debug channel.
		res.Anomalies = append(res.Anomalies, AnomalyDeclaredMismatch)
	}

	percent := decimal.NewFromInt(1).Sub(declaredTotal.Div(expected)).Mul(hundred)
	if percent.Sign() < 0 {
		percent = decimal.Zero
		res.Anomalies = append(res.Anomalies, AnomalyPercentClamped)
	} else if percent.GreaterThan(hundred) {
		percent = hundred
		res.Anomalies = append(res.Anomalies, AnomalyPercentClamped)
	}
	res.Percent = percent
	return res
}

// Apply returns the post-discount value of expected for the given percent.
func Apply(expected, percent decimal.Decimal) decimal.Decimal {
	return expected.Mul(hundred.Sub(percent)).Div(hundred)
}

func inRange(percent decimal.Decimal) bool {
	return percent.Sign() >= 0 && percent.LessThanOrEqual(hundred)
}

func consistent(expected, declaredTotal, declaredPercent decimal.Decimal) bool {
	diff := Apply(expected, declaredPercent).Sub(declaredTotal).Abs()
	return diff.LessThanOrEqual(expected.Abs().Mul(TrustTolerance))
}
