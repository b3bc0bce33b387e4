package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/fx"
)

// GroupLine is one item as it participates in a group total: the displayed
// quantity reflects any optimistic overlay.
type GroupLine struct {
	Item         Item
	DisplayedQty int
	// LineTotal = effective unit price * displayed quantity.
	LineTotal decimal.Decimal
	InFlight  bool
}

// Group is the set of items owned by one company with its derived total.
type Group struct {
	CompanyID   uuid.UUID
	CompanyName string
	Lines       []GroupLine
	Total       decimal.Decimal
}

// Summary is the full aggregation of a cart: one group per owning company in
// first-appearance order, plus bi-currency grand totals.
type Summary struct {
	Groups           []Group
	GrandTotal       decimal.Decimal
	GrandTotalTarget decimal.Decimal
	Rate             fx.Rate
}

// Summarize partitions items by owning company and derives group and grand
// totals from the displayed quantities. It is a pure function: states are
// read through the provided lookup and nothing is mutated.
func Summarize(items []Item, stateOf func(Item) State, conv *fx.Converter) Summary {
	index := make(map[uuid.UUID]int)
	groups := make([]Group, 0, 2)

	for _, item := range items {
		st := State{Phase: PhaseCommitted, CommittedQty: item.Quantity}
		if stateOf != nil {
			st = stateOf(item)
		}
		qty := st.DisplayedQty()
		if qty < 0 {
			qty = 0
		}
		line := GroupLine{
			Item:         item,
			DisplayedQty: qty,
			LineTotal:    item.EffectiveUnitPrice().Mul(decimal.NewFromInt(int64(qty))),
			InFlight:     st.InFlight(),
		}

		at, ok := index[item.CompanyID]
		if !ok {
			at = len(groups)
			index[item.CompanyID] = at
			groups = append(groups, Group{
				CompanyID:   item.CompanyID,
				CompanyName: item.CompanyName,
				Total:       decimal.Zero,
			})
		}
		groups[at].Lines = append(groups[at].Lines, line)
		groups[at].Total = groups[at].Total.Add(line.LineTotal)
	}

	grand := decimal.Zero
	for _, g := range groups {
		grand = grand.Add(g.Total)
	}

	summary := Summary{Groups: groups, GrandTotal: grand}
	if conv != nil {
		summary.GrandTotalTarget = conv.ToTarget(grand)
		summary.Rate = conv.Rate()
	}
	return summary
}
