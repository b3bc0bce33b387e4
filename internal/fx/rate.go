// Package fx supplies the exchange rate used to express quote figures in
// both currencies and performs the conversions themselves. A rate is always
// a single linear multiply/divide; conversions are never compounded.
package fx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFallbackRate is the documented fallback applied when no live rate
// can be obtained. It keeps rendering alive; results derived from it are
// marked stale so the UI can show a non-blocking indicator.
var DefaultFallbackRate = decimal.RequireFromString("6.96")

// Rate is the exchange rate between the source and target currencies,
// expressed as units of source currency per one unit of target currency.
// It is ephemeral: memoized per render pass and never persisted.
type Rate struct {
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetchedAt"`
	// Fallback reports that the live fetch failed and the documented
	// default was substituted.
	Fallback bool `json:"fallback"`
}

// Provider fetches a live exchange rate from an external source.
type Provider interface {
	FetchRate(ctx context.Context, source, target string) (Rate, error)
}
