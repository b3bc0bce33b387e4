package numeric

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountParsesPlainDecimal(t *testing.T) {
	got := Amount("12.5")
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5, got %s", got)
	}
}

func TestAmountLocaleSeparators(t *testing.T) {
	cases := map[string]string{
		"1.234,56": "1234.56",
		"1,234.56": "1234.56",
		"1.234.567": "1234567",
		"2,5":      "2.5",
		" 99 ":     "99",
	}
	for in, want := range cases {
		got := Amount(in)
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("Amount(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestAmountFallsBackToZero(t *testing.T) {
	inputs := []any{nil, "", "abc", math.NaN(), math.Inf(1), math.Inf(-1), struct{}{}}
	for _, in := range inputs {
		if got := Amount(in); !got.IsZero() {
			t.Fatalf("Amount(%v) = %s, want 0", in, got)
		}
	}
}

func TestAmountKeepsSign(t *testing.T) {
	got := Amount("-3.75")
	if !got.Equal(decimal.RequireFromString("-3.75")) {
		t.Fatalf("expected -3.75, got %s", got)
	}
}

func TestQuantityFallsBackToOne(t *testing.T) {
	inputs := []any{nil, "zero", 0, -4, math.NaN()}
	for _, in := range inputs {
		if got := Quantity(in); got != 1 {
			t.Fatalf("Quantity(%v) = %d, want 1", in, got)
		}
	}
	if got := Quantity("3"); got != 3 {
		t.Fatalf("Quantity(\"3\") = %d, want 3", got)
	}
}

func TestNonNegative(t *testing.T) {
	d, clamped := NonNegative(decimal.NewFromInt(-7))
	if !d.IsZero() || !clamped {
		t.Fatalf("expected clamp to zero, got %s clamped=%v", d, clamped)
	}
	d, clamped = NonNegative(decimal.NewFromInt(7))
	if !d.Equal(decimal.NewFromInt(7)) || clamped {
		t.Fatalf("expected passthrough, got %s clamped=%v", d, clamped)
	}
}

func TestRound2(t *testing.T) {
	got := Round2(decimal.RequireFromString("10.005"))
	if !got.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("expected 10.01, got %s", got)
	}
}
