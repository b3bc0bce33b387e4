// Package quote computes the authoritative totals snapshot for a quotation.
// A snapshot is composed exactly once per render from the reconciled line
// items, the derived shipment figures and a single resolved exchange rate,
// then fanned out unmodified to every surface that displays it.
package quote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/discount"
	"github.com/andeantrade/cotiza-api/internal/events"
	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/obs"
	"github.com/andeantrade/cotiza-api/internal/shipment"
)

// Render surfaces sharing one snapshot. The surface only selects projection
// and metrics labels; the underlying figures are identical across all three.
const (
	SurfaceDetail = "detail"
	SurfacePrint  = "print"
	SurfacePublic = "public"
)

// Reader loads quotes for rendering.
type Reader interface {
	QuoteByID(ctx context.Context, id uuid.UUID) (Quote, error)
	QuoteByShareToken(ctx context.Context, token string) (Quote, error)
}

// TotalsWriter persists recomputed totals back onto the quote record.
type TotalsWriter interface {
	SaveQuoteTotals(ctx context.Context, id uuid.UUID, totals Totals) error
}

// RateSource resolves the exchange rate for a render session. Resolution is
// infallible; degraded results carry the Fallback marker instead of an error.
type RateSource interface {
	Resolve(ctx context.Context) fx.Rate
}

// LineFigure is one reconciled line as rendered. EffectiveTotal is always
// derived from the resolved percent so the line arithmetic is consistent by
// construction, even when the declared fields disagreed.
type LineFigure struct {
	Item LineItem

	ExpectedTotal        decimal.Decimal
	EffectivePercent     decimal.Decimal
	EffectiveTotal       decimal.Decimal
	EffectiveTotalTarget decimal.Decimal
	BackSolved           bool
	Anomalies            []discount.Anomaly
}

// Snapshot is the complete computed view of a quote at one instant.
type Snapshot struct {
	Quote Quote
	Lines []LineFigure

	Shipment shipment.Totals
	Rate     fx.Rate
	Totals   Totals

	GeneratedAt time.Time
}

// Stale reports whether the snapshot was priced with the fallback rate.
func (s Snapshot) Stale() bool { return s.Rate.Fallback }

// Engine composes snapshots and persists recalculated totals.
type Engine struct {
	Store  Reader
	Writer TotalsWriter
	Rates  RateSource
	Events *events.Bus
	Logger zerolog.Logger
}

// SnapshotByID loads a quote and composes its snapshot.
func (e *Engine) SnapshotByID(ctx context.Context, id uuid.UUID, surface string) (Snapshot, error) {
	if e.Store == nil {
		return Snapshot{}, fmt.Errorf("quote: store not configured")
	}
	q, err := e.Store.QuoteByID(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return e.Compose(ctx, q, surface), nil
}

// SnapshotByToken loads a quote through its public share token and composes
// its snapshot. The figures are identical to the authenticated detail view.
func (e *Engine) SnapshotByToken(ctx context.Context, token string, surface string) (Snapshot, error) {
	if e.Store == nil {
		return Snapshot{}, fmt.Errorf("quote: store not configured")
	}
	q, err := e.Store.QuoteByShareToken(ctx, token)
	if err != nil {
		return Snapshot{}, err
	}
	return e.Compose(ctx, q, surface), nil
}

// Compose builds the snapshot for an already-loaded quote. It resolves the
// rate exactly once, reconciles every line, aggregates the shipment figures
// and composes the bi-currency totals. Compose never fails: degraded inputs
// surface as stale markers and anomaly flags, not errors.
func (e *Engine) Compose(ctx context.Context, q Quote, surface string) Snapshot {
	start := time.Now()

	rate := e.resolveRate(ctx)
	conv := fx.NewConverter(rate)

	lines := make([]LineFigure, 0, len(q.Items))
	shipLines := make([]shipment.Line, 0, len(q.Items))
	subtotal := decimal.Zero
	totalDiscount := decimal.Zero
	backSolved := 0

	for _, item := range q.Items {
		fig := resolveLine(item, conv)
		subtotal = subtotal.Add(fig.ExpectedTotal)
		totalDiscount = totalDiscount.Add(fig.ExpectedTotal.Sub(fig.EffectiveTotal))
		if fig.BackSolved {
			backSolved++
		}
		lines = append(lines, fig)
		shipLines = append(shipLines, shipment.Line{
			Quantity:   item.Quantity,
			WeightKg:   item.ProductWeightKg,
			Dimensions: item.ProductDimensions,
		})
	}
	if backSolved > 0 && obs.DiscountBackSolveTotal != nil {
		obs.DiscountBackSolveTotal.Add(float64(backSolved))
	}

	ship := shipment.Aggregate(shipLines)
	for _, idx := range ship.SkippedDimensions {
		e.Logger.Debug().
			Stringer("quote_id", q.ID).
			Int("line", idx).
			Str("dimensions", q.Items[idx].ProductDimensions).
			Msg("unparseable product dimensions, line excluded from volume")
	}

	totals := ComposeTotals(ComposeInput{
		Subtotal:               subtotal,
		Discount:               totalDiscount,
		NationalFreight:        q.NationalFreight,
		InternationalFreight:   q.InternationalFreight,
		InternationalInsurance: q.InternationalInsurance,
		CustomsFees:            q.CustomsFees,
		Converter:              conv,
	})
	e.reportAnomalies(ctx, q, lines, totals)

	snap := Snapshot{
		Quote:       q,
		Lines:       lines,
		Shipment:    ship,
		Rate:        conv.Rate(),
		Totals:      totals,
		GeneratedAt: time.Now(),
	}
	if obs.SnapshotDuration != nil {
		obs.SnapshotDuration.WithLabelValues(surface).
			Observe(float64(time.Since(start).Milliseconds()))
	}
	return snap
}

// Recalculate composes a fresh snapshot for the quote and persists the
// recomputed totals, replacing whatever declared figures the record carried.
func (e *Engine) Recalculate(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	snap, err := e.SnapshotByID(ctx, id, SurfaceDetail)
	if err != nil {
		return Snapshot{}, err
	}
	if e.Writer != nil {
		if err := e.Writer.SaveQuoteTotals(ctx, id, snap.Totals); err != nil {
			return Snapshot{}, fmt.Errorf("quote: persist totals: %w", err)
		}
	}
	if e.Events != nil {
		payload := map[string]any{
			"totalSource":    snap.Totals.TotalSource,
			"totalTarget":    snap.Totals.TotalTarget,
			"totalCifTarget": snap.Totals.TotalCIFTarget,
			"rate":           snap.Rate.Value,
			"rateFallback":   snap.Rate.Fallback,
		}
		if _, err := e.Events.Emit(ctx, events.TopicQuoteRecalculated, id, payload); err != nil {
			e.Logger.Debug().Err(err).Msg("emit quote recalculated event")
		}
	}
	return snap, nil
}

func (e *Engine) resolveRate(ctx context.Context) fx.Rate {
	if e.Rates == nil {
		return fx.Rate{Value: fx.DefaultFallbackRate, FetchedAt: time.Now(), Fallback: true}
	}
	return e.Rates.Resolve(ctx)
}

func (e *Engine) reportAnomalies(ctx context.Context, q Quote, lines []LineFigure, totals Totals) {
	kinds := make([]string, 0, 4)
	for _, a := range totals.Anomalies {
		kinds = append(kinds, string(a))
	}
	for i, fig := range lines {
		for _, a := range fig.Anomalies {
			kinds = append(kinds, string(a))
			e.Logger.Warn().
				Stringer("quote_id", q.ID).
				Int("line", i).
				Str("kind", string(a)).
				Msg("line reconciliation anomaly")
		}
	}
	if len(kinds) == 0 {
		return
	}
	if obs.AnomalousTotalsTotal != nil {
		for _, kind := range kinds {
			obs.AnomalousTotalsTotal.WithLabelValues(kind).Inc()
		}
	}
	if e.Events != nil && q.ID != uuid.Nil {
		payload := map[string]any{
			"kinds":       kinds,
			"totalSource": totals.TotalSource,
		}
		if _, err := e.Events.Emit(ctx, events.TopicQuoteTotalsAnomalous, q.ID, payload); err != nil {
			e.Logger.Debug().Err(err).Msg("emit anomalous totals event")
		}
	}
}

// resolveLine reconciles one line item and derives its effective figures.
func resolveLine(item LineItem, conv *fx.Converter) LineFigure {
	qty := item.Quantity
	if qty < 1 {
		qty = 1
	}
	expected := item.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	res := discount.Reconcile(qty, item.UnitPrice, item.DeclaredLineTotal, item.DeclaredDiscountPercent)
	effective := discount.Apply(expected, res.Percent)
	return LineFigure{
		Item:                 item,
		ExpectedTotal:        expected,
		EffectivePercent:     res.Percent,
		EffectiveTotal:       effective,
		EffectiveTotalTarget: conv.ToTarget(effective),
		BackSolved:           res.BackSolved,
		Anomalies:            res.Anomalies,
	}
}
