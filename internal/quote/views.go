package quote

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/numeric"
)

// View types are projections of one Snapshot. Figures are rounded to two
// decimals here, at the presentation boundary, never earlier.

// MoneyView is one amount expressed in both currencies.
type MoneyView struct {
	Source decimal.Decimal `json:"source"`
	Target decimal.Decimal `json:"target"`
}

// RateView describes the exchange rate a view was priced with.
type RateView struct {
	Source    string          `json:"source"`
	Target    string          `json:"target"`
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Stale     bool            `json:"stale"`
}

// LineView is one rendered line item.
type LineView struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"productId,omitempty"`
	Description     string          `json:"description"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Total           MoneyView       `json:"total"`
	// BackSolved marks lines whose discount was recomputed from the
	// declared total. Omitted from the public view.
	BackSolved bool `json:"backSolved,omitempty"`
}

// ShipmentView carries the derived cargo figures.
type ShipmentView struct {
	WeightKg decimal.Decimal `json:"weightKg"`
	VolumeM3 decimal.Decimal `json:"volumeM3"`
}

// TotalsView is the rendered bi-currency totals block.
type TotalsView struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	NationalFreight decimal.Decimal `json:"nationalFreight"`

	TotalSource decimal.Decimal `json:"totalSource"`
	TotalTarget decimal.Decimal `json:"totalTarget"`

	InternationalFreight   decimal.Decimal `json:"internationalFreight"`
	InternationalInsurance decimal.Decimal `json:"internationalInsurance"`
	CustomsFees            decimal.Decimal `json:"customsFees"`
	TotalCIFTarget         decimal.Decimal `json:"totalCifTarget"`
}

// DetailView is the authenticated quote view, anomalies included.
type DetailView struct {
	ID          string       `json:"id"`
	Reference   string       `json:"reference"`
	CompanyID   string       `json:"companyId,omitempty"`
	CompanyName string       `json:"companyName"`
	Incoterm    string       `json:"incoterm,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Lines       []LineView   `json:"lines"`
	Shipment    ShipmentView `json:"shipment"`
	Totals      TotalsView   `json:"totals"`
	Rate        RateView     `json:"rate"`
	Anomalies   []string     `json:"anomalies,omitempty"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// PrintView is the print/PDF-oriented projection. Same figures as the
// detail view with the letterhead fields lifted to the top.
type PrintView struct {
	Reference   string       `json:"reference"`
	CompanyName string       `json:"companyName"`
	Incoterm    string       `json:"incoterm,omitempty"`
	IssuedAt    time.Time    `json:"issuedAt"`
	Notes       string       `json:"notes,omitempty"`
	Lines       []LineView   `json:"lines"`
	Shipment    ShipmentView `json:"shipment"`
	Totals      TotalsView   `json:"totals"`
	Rate        RateView     `json:"rate"`
}

// PublicView is the share-link projection: identical figures, internal
// diagnostics stripped.
type PublicView struct {
	Reference   string       `json:"reference"`
	CompanyName string       `json:"companyName"`
	Incoterm    string       `json:"incoterm,omitempty"`
	Lines       []LineView   `json:"lines"`
	Shipment    ShipmentView `json:"shipment"`
	Totals      TotalsView   `json:"totals"`
	Rate        RateView     `json:"rate"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// NewDetailView projects a snapshot for the authenticated detail surface.
func NewDetailView(s Snapshot) DetailView {
	anomalies := collectAnomalies(s)
	companyID := ""
	if s.Quote.CompanyID != uuid.Nil {
		companyID = s.Quote.CompanyID.String()
	}
	return DetailView{
		ID:          s.Quote.ID.String(),
		Reference:   s.Quote.Reference,
		CompanyID:   companyID,
		CompanyName: s.Quote.CompanyName,
		Incoterm:    s.Quote.Incoterm,
		Notes:       s.Quote.Notes,
		Lines:       lineViews(s, true),
		Shipment:    shipmentView(s),
		Totals:      totalsView(s.Totals),
		Rate:        rateView(s),
		Anomalies:   anomalies,
		GeneratedAt: s.GeneratedAt,
	}
}

// NewPrintView projects a snapshot for the print surface.
func NewPrintView(s Snapshot) PrintView {
	return PrintView{
		Reference:   s.Quote.Reference,
		CompanyName: s.Quote.CompanyName,
		Incoterm:    s.Quote.Incoterm,
		IssuedAt:    s.Quote.CreatedAt,
		Notes:       s.Quote.Notes,
		Lines:       lineViews(s, true),
		Shipment:    shipmentView(s),
		Totals:      totalsView(s.Totals),
		Rate:        rateView(s),
	}
}

// NewPublicView projects a snapshot for the public share surface.
func NewPublicView(s Snapshot) PublicView {
	return PublicView{
		Reference:   s.Quote.Reference,
		CompanyName: s.Quote.CompanyName,
		Incoterm:    s.Quote.Incoterm,
		Lines:       lineViews(s, false),
		Shipment:    shipmentView(s),
		Totals:      totalsView(s.Totals),
		Rate:        rateView(s),
		GeneratedAt: s.GeneratedAt,
	}
}

func lineViews(s Snapshot, internal bool) []LineView {
	views := make([]LineView, 0, len(s.Lines))
	for _, fig := range s.Lines {
		productID := ""
		if internal && fig.Item.ProductID != uuid.Nil {
			productID = fig.Item.ProductID.String()
		}
		views = append(views, LineView{
			ID:              fig.Item.ID.String(),
			ProductID:       productID,
			Description:     fig.Item.Description,
			Quantity:        fig.Item.Quantity,
			UnitPrice:       numeric.Round2(fig.Item.UnitPrice),
			DiscountPercent: numeric.Round2(fig.EffectivePercent),
			Total: MoneyView{
				Source: numeric.Round2(fig.EffectiveTotal),
				Target: numeric.Round2(fig.EffectiveTotalTarget),
			},
			BackSolved: internal && fig.BackSolved,
		})
	}
	return views
}

func shipmentView(s Snapshot) ShipmentView {
	return ShipmentView{
		WeightKg: numeric.Round2(s.Shipment.WeightKg),
		VolumeM3: numeric.Round2(s.Shipment.VolumeM3),
	}
}

func totalsView(t Totals) TotalsView {
	return TotalsView{
		Subtotal:               numeric.Round2(t.Subtotal),
		Discount:               numeric.Round2(t.Discount),
		NationalFreight:        numeric.Round2(t.NationalFreight),
		TotalSource:            numeric.Round2(t.TotalSource),
		TotalTarget:            numeric.Round2(t.TotalTarget),
		InternationalFreight:   numeric.Round2(t.InternationalFreight),
		InternationalInsurance: numeric.Round2(t.InternationalInsurance),
		CustomsFees:            numeric.Round2(t.CustomsFees),
		TotalCIFTarget:         numeric.Round2(t.TotalCIFTarget),
	}
}

func rateView(s Snapshot) RateView {
	return RateView{
		Source:    s.Rate.Source,
		Target:    s.Rate.Target,
		Value:     s.Rate.Value,
		FetchedAt: s.Rate.FetchedAt,
		Stale:     s.Rate.Fallback,
	}
}

func collectAnomalies(s Snapshot) []string {
	var out []string
	for _, a := range s.Totals.Anomalies {
		out = append(out, string(a))
	}
	for _, fig := range s.Lines {
		for _, a := range fig.Anomalies {
			out = append(out, string(a))
		}
	}
	return out
}
