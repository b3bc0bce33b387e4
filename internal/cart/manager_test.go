package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/lock"
)

type fakeStore struct {
	cart Cart
	// rejectNext makes the next mutation fail, simulating server rejection.
	rejectNext bool
}

func (f *fakeStore) CartByID(_ context.Context, id uuid.UUID) (Cart, error) {
	if id != f.cart.ID {
		return Cart{}, ErrNotFound
	}
	return f.cart, nil
}

func (f *fakeStore) ItemByID(_ context.Context, cartID, itemID uuid.UUID) (Item, error) {
	if cartID != f.cart.ID {
		return Item{}, ErrNotFound
	}
	for _, it := range f.cart.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return Item{}, ErrNotFound
}

func (f *fakeStore) UpdateItemQuantity(_ context.Context, _, itemID uuid.UUID, qty int) error {
	if f.rejectNext {
		f.rejectNext = false
		return errors.New("insufficient stock")
	}
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			f.cart.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) RemoveItem(_ context.Context, _, itemID uuid.UUID) error {
	if f.rejectNext {
		f.rejectNext = false
		return errors.New("item locked upstream")
	}
	for i := range f.cart.Items {
		if f.cart.Items[i].ID == itemID {
			f.cart.Items = append(f.cart.Items[:i], f.cart.Items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func newTestManager(t *testing.T) (*Manager, *fakeStore) {
	t.Helper()
	items, _, _ := threeItemsTwoCompanies()
	store := &fakeStore{cart: Cart{ID: uuid.New(), Items: items}}
	return &Manager{
		Store:  store,
		States: NewArena(),
		Logger: zerolog.Nop(),
	}, store
}

func TestSetQuantityConfirmsAndUpdatesTotals(t *testing.T) {
	m, store := newTestManager(t)
	item := store.cart.Items[0]

	state, err := m.SetQuantity(context.Background(), store.cart.ID, item.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, PhaseCommitted, state.Phase)
	assert.Equal(t, 5, state.DisplayedQty())

	_, summary, err := m.Summary(context.Background(), store.cart.ID)
	require.NoError(t, err)
	assert.True(t, summary.Groups[0].Total.Equal(dec("560")), "total = %s", summary.Groups[0].Total)
}

func TestRejectedMutationRevertsOnlyThatItem(t *testing.T) {
	m, store := newTestManager(t)
	item := store.cart.Items[0]

	_, before, err := m.Summary(context.Background(), store.cart.ID)
	require.NoError(t, err)

	store.rejectNext = true
	state, err := m.SetQuantity(context.Background(), store.cart.ID, item.ID, 50)
	require.Error(t, err)
	assert.Equal(t, PhaseRolledBack, state.Phase)
	assert.Equal(t, item.Quantity, state.DisplayedQty())

	_, after, err := m.Summary(context.Background(), store.cart.ID)
	require.NoError(t, err)
	assert.True(t, after.GrandTotal.Equal(before.GrandTotal))
	for i := range before.Groups {
		assert.True(t, after.Groups[i].Total.Equal(before.Groups[i].Total))
	}
}

func TestRemoveConfirmedDropsLineFromSummary(t *testing.T) {
	m, store := newTestManager(t)
	item := store.cart.Items[1]

	state, err := m.Remove(context.Background(), store.cart.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, state.DisplayedQty())

	_, summary, err := m.Summary(context.Background(), store.cart.ID)
	require.NoError(t, err)
	require.Len(t, summary.Groups, 1)
	assert.True(t, summary.GrandTotal.Equal(dec("260")))
}

func TestSecondMutationWhileInFlightConflicts(t *testing.T) {
	m, store := newTestManager(t)
	item := store.cart.Items[0]

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	m.Locks = lock.Locker{R: client}

	// Simulate an in-flight mutation holding the item lock.
	key := fmt.Sprintf("cart:item:%s:mutation", item.ID)
	require.NoError(t, client.SetNX(context.Background(), key, "holder", time.Minute).Err())

	_, err := m.SetQuantity(context.Background(), store.cart.ID, item.ID, 3)
	assert.ErrorIs(t, err, ErrMutationInFlight)

	mr.Del(key)
	state, err := m.SetQuantity(context.Background(), store.cart.ID, item.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, state.DisplayedQty())
}

func TestHandlerEndpoints(t *testing.T) {
	m, store := newTestManager(t)
	m.Rates = staticRateSource{rate: fx.Rate{Source: "BOB", Target: "USD", Value: dec("6.96")}}
	h := NewHandler(HandlerConfig{Manager: m})

	r := chi.NewRouter()
	r.Get("/api/v1/carts/{cartID}", h.Summary)
	r.Patch("/api/v1/carts/{cartID}/items/{itemID}", h.UpdateQuantity)
	r.Delete("/api/v1/carts/{cartID}/items/{itemID}", h.RemoveItem)

	base := "/api/v1/carts/" + store.cart.ID.String()
	itemPath := base + "/items/" + store.cart.Items[0].ID.String()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, base, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data SummaryView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Groups, 2)
	assert.Equal(t, "320", body.Data.GrandTotal.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, itemPath, bytes.NewBufferString(`{"quantity":4}`)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, itemPath, bytes.NewBufferString(`{"quantity":0}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	store.rejectNext = true
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, itemPath, bytes.NewBufferString(`{"quantity":9}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, itemPath, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

type staticRateSource struct{ rate fx.Rate }

func (s staticRateSource) Resolve(context.Context) fx.Rate { return s.rate }
