package quote

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/andeantrade/cotiza-api/internal/fx"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func converterAt(rate string) *fx.Converter {
	return fx.NewConverter(fx.Rate{Source: "BOB", Target: "USD", Value: dec(rate)})
}

func TestComposeTotalsWorkedExample(t *testing.T) {
	got := ComposeTotals(ComposeInput{
		Subtotal:               dec("1000"),
		Discount:               dec("100"),
		NationalFreight:        dec("50"),
		InternationalFreight:   dec("20"),
		InternationalInsurance: dec("5"),
		CustomsFees:            dec("10"),
		Converter:              converterAt("5"),
	})

	assert.True(t, got.TotalSource.Equal(dec("950")), "total source = %s", got.TotalSource)
	assert.True(t, got.TotalTarget.Equal(dec("190")), "total target = %s", got.TotalTarget)
	assert.True(t, got.TotalInternationalTarget.Equal(dec("35")))
	assert.True(t, got.TotalCIFTarget.Equal(dec("225")), "cif = %s", got.TotalCIFTarget)
	assert.Empty(t, got.Anomalies)
}

func TestComposeTotalsNegativeTotalSurfacedNotClamped(t *testing.T) {
	got := ComposeTotals(ComposeInput{
		Subtotal:  dec("100"),
		Discount:  dec("150"),
		Converter: converterAt("5"),
	})

	assert.True(t, got.TotalSource.Equal(dec("-50")))
	assert.True(t, got.TotalTarget.Equal(dec("-10")))
	assert.True(t, got.Flagged(AnomalyNegativeTotal))
}

func TestComposeTotalsClampsNegativeAdditiveInputs(t *testing.T) {
	got := ComposeTotals(ComposeInput{
		Subtotal:             dec("100"),
		InternationalFreight: dec("-7"),
		Converter:            converterAt("5"),
	})

	assert.True(t, got.InternationalFreight.IsZero())
	assert.True(t, got.Flagged(AnomalyClampedInput))
	// CIF never drops below the converted goods total.
	assert.True(t, got.TotalCIFTarget.GreaterThanOrEqual(got.TotalTarget))
}

func TestComposeTotalsCIFIsAdditiveOnly(t *testing.T) {
	base := ComposeInput{
		Subtotal:  dec("500"),
		Converter: converterAt("6.96"),
	}
	without := ComposeTotals(base)

	base.InternationalFreight = dec("12.50")
	base.CustomsFees = dec("3")
	with := ComposeTotals(base)

	assert.True(t, with.TotalTarget.Equal(without.TotalTarget))
	assert.True(t, with.TotalCIFTarget.Equal(without.TotalCIFTarget.Add(dec("15.50"))))
}
