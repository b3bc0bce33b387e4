package cart

import (
	"sync"

	"github.com/google/uuid"
)

// Phase is the lifecycle position of one item's optimistic overlay.
type Phase string

const (
	// PhaseCommitted means the displayed quantity equals the server's.
	PhaseCommitted Phase = "committed"
	// PhasePending means an optimistic quantity is displayed while the
	// server call is in flight.
	PhasePending Phase = "pending"
	// PhaseRolledBack means the last mutation was rejected and the
	// displayed quantity reverted. Rendering-wise equivalent to committed;
	// kept distinct so the surface can attach the error notification.
	PhaseRolledBack Phase = "rolled_back"
)

// State is the optimistic overlay for a single item. The zero value is not
// meaningful; states are created by Begin from the committed quantity.
type State struct {
	Phase        Phase
	CommittedQty int
	// PendingQty is the optimistically displayed quantity while Pending.
	PendingQty int
	// Removing marks a pending removal rather than a quantity change.
	Removing bool
}

// DisplayedQty is the quantity the surface renders right now.
func (s State) DisplayedQty() int {
	if s.Phase == PhasePending {
		if s.Removing {
			return 0
		}
		return s.PendingQty
	}
	return s.CommittedQty
}

// InFlight reports whether the item's controls must stay disabled.
func (s State) InFlight() bool { return s.Phase == PhasePending }

// Begin applies an optimistic quantity on top of the committed one. It is a
// pure transition: the returned state displays qty immediately while the
// committed value is retained for an exact rollback.
func Begin(s State, qty int) (State, error) {
	if s.InFlight() {
		return s, ErrMutationInFlight
	}
	if qty < 1 {
		return s, ErrInvalidInput
	}
	return State{
		Phase:        PhasePending,
		CommittedQty: s.CommittedQty,
		PendingQty:   qty,
	}, nil
}

// BeginRemove applies an optimistic removal.
func BeginRemove(s State) (State, error) {
	if s.InFlight() {
		return s, ErrMutationInFlight
	}
	return State{
		Phase:        PhasePending,
		CommittedQty: s.CommittedQty,
		Removing:     true,
	}, nil
}

// Confirm promotes the pending quantity to committed after the server
// accepted the mutation.
func Confirm(s State) State {
	if s.Phase != PhasePending {
		return s
	}
	qty := s.PendingQty
	if s.Removing {
		qty = 0
	}
	return State{Phase: PhaseCommitted, CommittedQty: qty}
}

// Rollback discards the optimistic overlay after a rejection, reverting to
// the exact pre-mutation committed quantity. Only this item is affected.
func Rollback(s State) State {
	if s.Phase != PhasePending {
		return s
	}
	return State{Phase: PhaseRolledBack, CommittedQty: s.CommittedQty}
}

// Arena indexes per-item optimistic state by item id. Transitions are pure;
// the arena only serializes access to the map.
type Arena struct {
	mu     sync.Mutex
	states map[uuid.UUID]State
}

// NewArena builds an empty state arena.
func NewArena() *Arena {
	return &Arena{states: make(map[uuid.UUID]State)}
}

// Get returns the current state, seeding from the committed quantity when
// the item has never mutated.
func (a *Arena) Get(id uuid.UUID, committedQty int) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[id]; ok {
		return s
	}
	return State{Phase: PhaseCommitted, CommittedQty: committedQty}
}

// Transition applies fn to the item's current state and stores the result.
// The map lock is held across the transition so concurrent callers observe
// a consistent sequence; fn itself must stay pure.
func (a *Arena) Transition(id uuid.UUID, committedQty int, fn func(State) (State, error)) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.states[id]
	if !ok {
		current = State{Phase: PhaseCommitted, CommittedQty: committedQty}
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	a.states[id] = next
	return next, nil
}

// Drop forgets an item's state, used after a confirmed removal.
func (a *Arena) Drop(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.states, id)
}
