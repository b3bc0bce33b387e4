package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andeantrade/cotiza-api/internal/events"
	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/lock"
	"github.com/andeantrade/cotiza-api/internal/obs"
)

// Store is the persistence surface the optimistic layer wraps. Mutations
// return plain success/failure; the manager owns the overlay bookkeeping.
type Store interface {
	CartByID(ctx context.Context, id uuid.UUID) (Cart, error)
	ItemByID(ctx context.Context, cartID, itemID uuid.UUID) (Item, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
}

// RateSource resolves the exchange rate used for the target-currency grand
// total. Resolution is infallible.
type RateSource interface {
	Resolve(ctx context.Context) fx.Rate
}

// Locker enforces at most one in-flight mutation per item across instances.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Manager wraps the cart store with the optimistic update protocol: the
// displayed quantity changes immediately, the server call runs behind it,
// and a rejection reverts exactly that item to its pre-mutation value.
type Manager struct {
	Store   Store
	States  *Arena
	Locks   Locker
	LockTTL time.Duration
	Rates   RateSource
	Events  *events.Bus
	Logger  zerolog.Logger
}

// Summary loads the cart and aggregates it by owning company, applying any
// optimistic overlays currently in the arena.
func (m *Manager) Summary(ctx context.Context, cartID uuid.UUID) (Cart, Summary, error) {
	if m == nil || m.Store == nil {
		return Cart{}, Summary{}, errors.New("cart manager not configured")
	}
	c, err := m.Store.CartByID(ctx, cartID)
	if err != nil {
		return Cart{}, Summary{}, err
	}
	conv := fx.NewConverter(m.resolveRate(ctx))
	summary := Summarize(c.Items, func(item Item) State {
		return m.arena().Get(item.ID, item.Quantity)
	}, conv)
	return c, summary, nil
}

// SetQuantity optimistically changes one item's quantity. The returned state
// is the settled one: committed on success, rolled back on rejection (in
// which case the error is also returned so the surface can notify).
func (m *Manager) SetQuantity(ctx context.Context, cartID, itemID uuid.UUID, qty int) (State, error) {
	return m.mutate(ctx, cartID, itemID,
		func(s State) (State, error) { return Begin(s, qty) },
		func(ctx context.Context) error {
			return m.Store.UpdateItemQuantity(ctx, cartID, itemID, qty)
		})
}

// Remove optimistically removes one item.
func (m *Manager) Remove(ctx context.Context, cartID, itemID uuid.UUID) (State, error) {
	return m.mutate(ctx, cartID, itemID, BeginRemove,
		func(ctx context.Context) error {
			return m.Store.RemoveItem(ctx, cartID, itemID)
		})
}

func (m *Manager) mutate(ctx context.Context, cartID, itemID uuid.UUID, begin func(State) (State, error), call func(context.Context) error) (State, error) {
	if m == nil || m.Store == nil {
		return State{}, errors.New("cart manager not configured")
	}
	item, err := m.Store.ItemByID(ctx, cartID, itemID)
	if err != nil {
		return State{}, err
	}

	var settled State
	run := func(ctx context.Context) error {
		pending, err := m.arena().Transition(itemID, item.Quantity, begin)
		if err != nil {
			settled = pending
			return err
		}
		if err := call(ctx); err != nil {
			settled, _ = m.arena().Transition(itemID, item.Quantity, func(s State) (State, error) {
				return Rollback(s), nil
			})
			m.count("rolled_back")
			m.emit(ctx, events.TopicCartItemRolledBack, itemID, map[string]any{
				"cartId":       cartID,
				"revertedQty":  settled.CommittedQty,
				"rejectedWith": err.Error(),
			})
			m.Logger.Warn().
				Stringer("cart_id", cartID).
				Stringer("item_id", itemID).
				Err(err).
				Msg("cart mutation rejected, item reverted")
			return err
		}
		settled, _ = m.arena().Transition(itemID, item.Quantity, func(s State) (State, error) {
			return Confirm(s), nil
		})
		if settled.CommittedQty == 0 {
			m.arena().Drop(itemID)
		}
		m.count("confirmed")
		m.emit(ctx, events.TopicCartItemUpdated, itemID, map[string]any{
			"cartId":   cartID,
			"quantity": settled.CommittedQty,
		})
		return nil
	}

	if m.Locks == nil {
		return settled, run(ctx)
	}
	key := fmt.Sprintf("cart:item:%s:mutation", itemID)
	err = m.Locks.TryWithLock(ctx, key, m.lockTTL(), run)
	if errors.Is(err, lock.ErrHeld) {
		m.count("conflict")
		return m.arena().Get(itemID, item.Quantity), ErrMutationInFlight
	}
	return settled, err
}

func (m *Manager) arena() *Arena {
	if m.States == nil {
		m.States = NewArena()
	}
	return m.States
}

func (m *Manager) lockTTL() time.Duration {
	if m.LockTTL <= 0 {
		return 15 * time.Second
	}
	return m.LockTTL
}

func (m *Manager) resolveRate(ctx context.Context) fx.Rate {
	if m.Rates == nil {
		return fx.Rate{Value: fx.DefaultFallbackRate, FetchedAt: time.Now(), Fallback: true}
	}
	return m.Rates.Resolve(ctx)
}

func (m *Manager) count(result string) {
	if obs.CartMutationTotal != nil {
		obs.CartMutationTotal.WithLabelValues(result).Inc()
	}
}

func (m *Manager) emit(ctx context.Context, topic string, itemID uuid.UUID, payload map[string]any) {
	if m.Events == nil {
		return
	}
	if _, err := m.Events.Emit(ctx, topic, itemID, payload); err != nil {
		m.Logger.Debug().Err(err).Str("topic", topic).Msg("emit cart event")
	}
}
