package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginShowsOptimisticQuantityImmediately(t *testing.T) {
	s := State{Phase: PhaseCommitted, CommittedQty: 2}

	next, err := Begin(s, 3)
	require.NoError(t, err)

	assert.Equal(t, PhasePending, next.Phase)
	assert.Equal(t, 3, next.DisplayedQty())
	assert.Equal(t, 2, next.CommittedQty)
	assert.True(t, next.InFlight())
}

func TestBeginWhilePendingIsRejected(t *testing.T) {
	s := State{Phase: PhaseCommitted, CommittedQty: 2}
	pending, err := Begin(s, 3)
	require.NoError(t, err)

	_, err = Begin(pending, 4)
	assert.ErrorIs(t, err, ErrMutationInFlight)

	_, err = BeginRemove(pending)
	assert.ErrorIs(t, err, ErrMutationInFlight)
}

func TestBeginRejectsNonPositiveQuantity(t *testing.T) {
	_, err := Begin(State{CommittedQty: 2}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConfirmPromotesPendingQuantity(t *testing.T) {
	pending, err := Begin(State{Phase: PhaseCommitted, CommittedQty: 2}, 5)
	require.NoError(t, err)

	settled := Confirm(pending)
	assert.Equal(t, PhaseCommitted, settled.Phase)
	assert.Equal(t, 5, settled.CommittedQty)
	assert.Equal(t, 5, settled.DisplayedQty())
	assert.False(t, settled.InFlight())
}

func TestRollbackRevertsExactlyToPreMutationQuantity(t *testing.T) {
	pending, err := Begin(State{Phase: PhaseCommitted, CommittedQty: 7}, 9)
	require.NoError(t, err)

	settled := Rollback(pending)
	assert.Equal(t, PhaseRolledBack, settled.Phase)
	assert.Equal(t, 7, settled.DisplayedQty())
	assert.False(t, settled.InFlight())
}

func TestRemovalDisplaysZeroWhilePending(t *testing.T) {
	pending, err := BeginRemove(State{Phase: PhaseCommitted, CommittedQty: 4})
	require.NoError(t, err)

	assert.Equal(t, 0, pending.DisplayedQty())

	settled := Confirm(pending)
	assert.Equal(t, 0, settled.CommittedQty)
}

func TestArenaSeedsFromCommittedQuantity(t *testing.T) {
	arena := NewArena()
	id := uuid.New()

	s := arena.Get(id, 6)
	assert.Equal(t, 6, s.DisplayedQty())

	next, err := arena.Transition(id, 6, func(s State) (State, error) { return Begin(s, 8) })
	require.NoError(t, err)
	assert.Equal(t, 8, next.DisplayedQty())
	assert.Equal(t, 8, arena.Get(id, 6).DisplayedQty())

	// A failed transition leaves the stored state untouched.
	_, err = arena.Transition(id, 6, func(s State) (State, error) { return Begin(s, 9) })
	assert.ErrorIs(t, err, ErrMutationInFlight)
	assert.Equal(t, 8, arena.Get(id, 6).DisplayedQty())

	arena.Drop(id)
	assert.Equal(t, 6, arena.Get(id, 6).DisplayedQty())
}
