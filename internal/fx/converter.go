package fx

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Converter performs conversions against one resolved rate for the lifetime
// of a single render session. Distinct requested amounts are memoized so a
// quote with repeated figures converts each value once. Rounding to two
// decimals happens only at presentation, never inside the converter, to
// avoid compounding rounding error across chained conversions.
type Converter struct {
	rate Rate

	mu   sync.Mutex
	memo map[string]decimal.Decimal
}

// NewConverter builds a render-scoped converter. A non-positive rate value
// (bad cache entry, corrupted payload) degrades to the documented fallback.
func NewConverter(rate Rate) *Converter {
	if rate.Value.Sign() <= 0 {
		rate.Value = DefaultFallbackRate
		rate.Fallback = true
	}
	return &Converter{rate: rate, memo: make(map[string]decimal.Decimal)}
}

// Rate returns the rate backing this converter.
func (c *Converter) Rate() Rate { return c.rate }

// Stale reports whether conversions derive from the fallback rate, for the
// optional non-blocking "rate may be outdated" indicator.
func (c *Converter) Stale() bool { return c.rate.Fallback }

// ToTarget converts a source-currency amount into the target currency.
func (c *Converter) ToTarget(amount decimal.Decimal) decimal.Decimal {
	return c.memoized("t:", amount, func() decimal.Decimal {
		return amount.Div(c.rate.Value)
	})
}

// ToSource converts a target-currency amount into the source currency.
func (c *Converter) ToSource(amount decimal.Decimal) decimal.Decimal {
	return c.memoized("s:", amount, func() decimal.Decimal {
		return amount.Mul(c.rate.Value)
	})
}

func (c *Converter) memoized(direction string, amount decimal.Decimal, compute func() decimal.Decimal) decimal.Decimal {
	key := direction + amount.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.memo[key]; ok {
		return v
	}
	v := compute()
	c.memo[key] = v
	return v
}
