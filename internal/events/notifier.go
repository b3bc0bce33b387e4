package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes emitted events to the structured log. It backs the
// operator review channel for anomaly topics until a dedicated sink exists.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("topic", event.Topic).
		Stringer("aggregate_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Time("occurred_at", event.OccurredAt).
		Msg("domain event")
	return nil
}
