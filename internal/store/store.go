// Package store is the hand-written pgx persistence layer. Monetary columns
// are numeric in Postgres and travel as text on the wire so decimals survive
// the round trip without float intermediaries.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/cart"
	"github.com/andeantrade/cotiza-api/internal/events"
	"github.com/andeantrade/cotiza-api/internal/quote"
)

// Store bundles all query groups over one connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

var (
	_ quote.Reader       = (*Store)(nil)
	_ quote.TotalsWriter = (*Store)(nil)
	_ cart.Store         = (*Store)(nil)
	_ events.Store       = (*Store)(nil)
)

// New constructs a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) pool() (*pgxpool.Pool, error) {
	if s == nil || s.Pool == nil {
		return nil, errors.New("store: pool not configured")
	}
	return s.Pool, nil
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// scanDecimal parses a numeric column fetched as text. Empty means NULL and
// maps to zero.
func scanDecimal(raw *string) (decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("store: parse numeric %q: %w", *raw, err)
	}
	return d, nil
}
