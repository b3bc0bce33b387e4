package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/andeantrade/cotiza-api/internal/events"
)

// InsertDomainEvent persists one domain event and returns the stored row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	pool, err := s.pool()
	if err != nil {
		return events.Event{}, err
	}
	ev := events.Event{Topic: topic, AggregateID: aggregateID, Payload: payload}
	row := pool.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, occurred_at`, topic, aggregateID, payload)
	if err := row.Scan(&ev.ID, &ev.OccurredAt); err != nil {
		return events.Event{}, fmt.Errorf("store: insert domain event: %w", err)
	}
	return ev, nil
}
