package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// FxFallbackTotal counts exchange-rate fetches that fell back to the
	// documented default rate.
	FxFallbackTotal prometheus.Counter
	// FxFetchTotal counts exchange-rate resolution outcomes.
	FxFetchTotal *prometheus.CounterVec
	// DiscountBackSolveTotal counts line items whose declared discount was
	// untrusted and had to be back-solved.
	DiscountBackSolveTotal prometheus.Counter
	// AnomalousTotalsTotal counts anomalies surfaced by the totals composer.
	AnomalousTotalsTotal *prometheus.CounterVec
	// CartMutationTotal counts optimistic cart mutation outcomes.
	CartMutationTotal *prometheus.CounterVec
	// SnapshotDuration records end-to-end quote snapshot computation time.
	SnapshotDuration *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific
// Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		fxFallback := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_fallback_total",
			Help:      "Count of rate resolutions that substituted the default rate.",
		})
		FxFallbackTotal = fxFallback
		FxFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_fetch_total",
			Help:      "Count of exchange-rate resolutions by source.",
		}, []string{"outcome"})
		backSolve := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_backsolve_total",
			Help:      "Count of line items whose declared discount was recomputed.",
		})
		DiscountBackSolveTotal = backSolve
		AnomalousTotalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalous_totals_total",
			Help:      "Count of anomalies flagged while composing quote totals.",
		}, []string{"kind"})
		CartMutationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutation_total",
			Help:      "Count of optimistic cart mutations by result.",
		}, []string{"result"})
		SnapshotDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_snapshot_duration_ms",
			Help:      "Latency of quote snapshot computation in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"surface"})

		registerCollector(reg, fxFallback, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				FxFallbackTotal = v
			}
		})
		registerCollector(reg, FxFetchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FxFetchTotal = v
			}
		})
		registerCollector(reg, backSolve, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				DiscountBackSolveTotal = v
			}
		})
		registerCollector(reg, AnomalousTotalsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				AnomalousTotalsTotal = v
			}
		})
		registerCollector(reg, CartMutationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationTotal = v
			}
		})
		registerCollector(reg, SnapshotDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				SnapshotDuration = v
			}
		})
	})
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
