package discount

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestReconcileBackSolvesStaleDeclaredDiscount(t *testing.T) {
	res := Reconcile(2, dec("100"), dec("180"), dec("0"))
	if !res.Percent.Equal(dec("10")) {
		t.Fatalf("expected 10%%, got %s", res.Percent)
	}
	if !res.BackSolved {
		t.Fatal("expected percent to be back-solved")
	}
	if !res.Flagged(AnomalyDeclaredMismatch) {
		t.Fatal("expected declared mismatch anomaly")
	}
}

func TestReconcileTrustsConsistentDeclaredDiscount(t *testing.T) {
	res := Reconcile(2, dec("100"), dec("200"), dec("0"))
	if !res.Percent.IsZero() {
		t.Fatalf("expected 0%%, got %s", res.Percent)
	}
	if res.BackSolved || len(res.Anomalies) != 0 {
		t.Fatalf("expected clean resolution, got %+v", res)
	}
}

func TestReconcileTrustsWithinTolerance(t *testing.T) {
	// 10% off 200 is 180; a declared total of 181 sits inside the 1%
	// tolerance (2.0) so the declared field wins.
	res := Reconcile(2, dec("100"), dec("181"), dec("10"))
	if !res.Percent.Equal(dec("10")) || res.BackSolved {
		t.Fatalf("expected declared 10%% to be trusted, got %+v", res)
	}
}

func TestReconcileZeroExpected(t *testing.T) {
	res := Reconcile(3, dec("0"), dec("50"), dec("25"))
	if !res.Percent.IsZero() || res.BackSolved {
		t.Fatalf("expected 0%% for zero expected, got %+v", res)
	}
}

func TestReconcileNegativeDeclaredTotal(t *testing.T) {
	res := Reconcile(1, dec("100"), dec("-20"), dec("15"))
	if !res.Percent.IsZero() {
		t.Fatalf("expected clamp to 0%%, got %s", res.Percent)
	}
	if !res.Flagged(AnomalyNegativeTotal) {
		t.Fatal("expected negative total anomaly")
	}
}

func TestReconcileClampsAboveHundred(t *testing.T) {
	// Declared total above the undiscounted value implies a negative
	// discount; the percent clamps to zero and the clamp is flagged.
	res := Reconcile(1, dec("100"), dec("120"), dec("150"))
	if !res.Percent.IsZero() {
		t.Fatalf("expected 0%%, got %s", res.Percent)
	}
	if !res.Flagged(AnomalyPercentClamped) {
		t.Fatal("expected clamp anomaly")
	}
}

func TestApply(t *testing.T) {
	got := Apply(dec("200"), dec("10"))
	if !got.Equal(dec("180")) {
		t.Fatalf("expected 180, got %s", got)
	}
}
