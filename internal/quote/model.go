// Package quote turns raw quote data into one internally consistent,
// bi-currency set of figures consumed identically by every render surface.
package quote

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested quote could not be located.
var ErrNotFound = errors.New("quote not found")

// LineItem is one product entry within a quote, as captured upstream. The
// declared discount field is known to go stale; the declared line total is
// the authoritative-ish side of the pair.
type LineItem struct {
	ID        uuid.UUID
	ProductID uuid.UUID

	Description string
	// Quantity as stored; coerced to >= 1 during resolution.
	Quantity int
	// UnitPrice in the source currency.
	UnitPrice decimal.Decimal
	// DeclaredDiscountPercent in [0,100], possibly stale.
	DeclaredDiscountPercent decimal.Decimal
	// DeclaredLineTotal in the source currency.
	DeclaredLineTotal decimal.Decimal

	// ProductWeightKg is the per-unit weight; zero when unknown.
	ProductWeightKg decimal.Decimal
	// ProductDimensions is free text "A x B x C" in meters.
	ProductDimensions string
}

// Quote is the source-of-truth record supplied by the data provider. The
// engine reads it many times and never writes back; recomputation is
// presentation-only unless Recalculate is invoked explicitly.
type Quote struct {
	ID          uuid.UUID
	Reference   string
	CompanyID   uuid.UUID
	CompanyName string
	Incoterm    string
	ShareToken  string

	// NationalFreight is charged in the source currency.
	NationalFreight decimal.Decimal
	// International figures arrive pre-converted in the target currency.
	InternationalFreight   decimal.Decimal
	InternationalInsurance decimal.Decimal
	CustomsFees            decimal.Decimal

	DeclaredSubtotal decimal.Decimal
	// DeclaredDiscount is the quote-level discount amount (source currency).
	DeclaredDiscount decimal.Decimal
	DeclaredTotal    decimal.Decimal

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []LineItem
}
