// Package cart groups cart items by owning company, computes group and grand
// totals, and manages optimistic quantity changes with rollback. Each item's
// optimistic state is independent: one item's in-flight mutation never blocks
// another's, and at most one mutation per item is in flight at a time.
package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the requested cart or item could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// ErrMutationInFlight is returned when an item already has a pending
// mutation. The caller disables that item's controls until it settles.
var ErrMutationInFlight = errors.New("mutation already in flight for item")

// Item is one cart entry as persisted. Quantity here is the committed
// quantity; optimistic overlays live in the per-item state arena, never on
// the item itself.
type Item struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID

	CompanyID   uuid.UUID
	CompanyName string

	Description string
	Quantity    int
	// UnitPrice in the source currency.
	UnitPrice decimal.Decimal
	// PromoPrice is the promotional unit price; zero means no promotion.
	PromoPrice decimal.Decimal

	UpdatedAt time.Time
}

// EffectiveUnitPrice returns the price a displayed quantity is billed at:
// the promotional price when one is set and undercuts the base price.
func (i Item) EffectiveUnitPrice() decimal.Decimal {
	if i.PromoPrice.Sign() > 0 && i.PromoPrice.LessThan(i.UnitPrice) {
		return i.PromoPrice
	}
	return i.UnitPrice
}

// Cart is the persisted cart record with its items.
type Cart struct {
	ID        uuid.UUID
	Reference string
	Items     []Item
	UpdatedAt time.Time
}
