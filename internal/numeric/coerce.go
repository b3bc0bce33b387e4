package numeric

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount coerces an arbitrary numeric-ish value into a finite decimal.
// Strings may carry either locale convention ("1.234,56" or "1,234.56").
// Values that cannot be interpreted (nil, NaN, Inf, garbage text) fall back
// to zero. Amount never panics and never lets a non-finite value escape.
func Amount(v any) decimal.Decimal {
	d, ok := tryDecimal(v)
	if !ok {
		return decimal.Zero
	}
	return d
}

// NonNegative returns d unchanged when it is zero or positive. It reports
// whether clamping to zero was necessary so callers can surface the anomaly
// instead of hiding it.
func NonNegative(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.Sign() < 0 {
		return decimal.Zero, true
	}
	return d, false
}

// Quantity coerces a quantity-like value into an integer of at least one.
// Zero is nonsensical for a quantity, so the fallback is 1 rather than 0.
func Quantity(v any) int {
	d, ok := tryDecimal(v)
	if !ok {
		return 1
	}
	q := int(d.IntPart())
	if q < 1 {
		return 1
	}
	return q
}

// Round2 rounds to two decimal places for presentation. Engine internals keep
// full precision; rounding happens exactly once, at the rendering edge.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func tryDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case string:
		return parseLocaleNumber(val)
	case json.Number:
		return parseLocaleNumber(val.String())
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case uint:
		return decimal.NewFromUint64(uint64(val)), true
	case uint64:
		return decimal.NewFromUint64(val), true
	case *float64:
		if val == nil {
			return decimal.Zero, false
		}
		return fromFloat(*val)
	case *string:
		if val == nil {
			return decimal.Zero, false
		}
		return parseLocaleNumber(*val)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// parseLocaleNumber accepts both "1.234,56" and "1,234.56". When both
// separators appear, the rightmost one is the decimal mark. A separator that
// occurs more than once is a thousands separator and is stripped.
func parseLocaleNumber(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(cleaned, ".") > 1 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
