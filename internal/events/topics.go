package events

// Topics emitted by the engine. Anomalies are surfaced for operator review
// through these events rather than being clamped or raised as errors.
const (
	TopicQuoteTotalsAnomalous = "quote.totals.anomalous"
	TopicQuoteRecalculated    = "quote.recalculated"
	TopicCartItemUpdated      = "cart.item.updated"
	TopicCartItemRolledBack   = "cart.item.rolled_back"
	TopicFxRateFallback       = "fx.rate.fallback"
)
