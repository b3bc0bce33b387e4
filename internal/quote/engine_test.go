package quote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andeantrade/cotiza-api/internal/fx"
)

type staticRates struct{ rate fx.Rate }

func (s staticRates) Resolve(context.Context) fx.Rate { return s.rate }

type memStore struct {
	quotes map[uuid.UUID]Quote
	tokens map[string]uuid.UUID
	saved  map[uuid.UUID]Totals
}

func newMemStore(quotes ...Quote) *memStore {
	s := &memStore{
		quotes: make(map[uuid.UUID]Quote),
		tokens: make(map[string]uuid.UUID),
		saved:  make(map[uuid.UUID]Totals),
	}
	for _, q := range quotes {
		s.quotes[q.ID] = q
		if q.ShareToken != "" {
			s.tokens[q.ShareToken] = q.ID
		}
	}
	return s
}

func (s *memStore) QuoteByID(_ context.Context, id uuid.UUID) (Quote, error) {
	q, ok := s.quotes[id]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return q, nil
}

func (s *memStore) QuoteByShareToken(_ context.Context, token string) (Quote, error) {
	id, ok := s.tokens[token]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return s.quotes[id], nil
}

func (s *memStore) SaveQuoteTotals(_ context.Context, id uuid.UUID, totals Totals) error {
	s.saved[id] = totals
	return nil
}

func fixtureQuote() Quote {
	return Quote{
		ID:          uuid.New(),
		Reference:   "COT-2024-0117",
		CompanyID:   uuid.New(),
		CompanyName: "Importadora Illimani",
		Incoterm:    "CIF",
		ShareToken:  "tok-abc123",

		NationalFreight:        dec("50"),
		InternationalFreight:   dec("20"),
		InternationalInsurance: dec("5"),
		CustomsFees:            dec("10"),

		CreatedAt: time.Now(),
		Items: []LineItem{
			{
				ID:                      uuid.New(),
				Description:             "Bomba centrifuga 2HP",
				Quantity:                4,
				UnitPrice:               dec("200"),
				DeclaredDiscountPercent: dec("10"),
				DeclaredLineTotal:       dec("720"),
				ProductWeightKg:         dec("12.5"),
				ProductDimensions:       "0.4 x 0.3 x 0.25",
			},
			{
				ID:          uuid.New(),
				Description: "Manguera reforzada 20m",
				Quantity:    2,
				UnitPrice:   dec("100"),
				// Stale declared field: the total says 10% off, the field
				// still says 0.
				DeclaredDiscountPercent: dec("0"),
				DeclaredLineTotal:       dec("180"),
				ProductWeightKg:         dec("4"),
				ProductDimensions:       "no dims",
			},
		},
	}
}

func newEngine(store *memStore, rate fx.Rate) *Engine {
	return &Engine{
		Store:  store,
		Writer: store,
		Rates:  staticRates{rate: rate},
		Logger: zerolog.Nop(),
	}
}

func TestComposeReconcilesLinesAndTotals(t *testing.T) {
	q := fixtureQuote()
	eng := newEngine(newMemStore(q), fx.Rate{Source: "BOB", Target: "USD", Value: dec("5")})

	snap, err := eng.SnapshotByID(context.Background(), q.ID, SurfaceDetail)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)

	// First line: declared 10% reproduces 720 from 800, trusted as-is.
	assert.False(t, snap.Lines[0].BackSolved)
	assert.True(t, snap.Lines[0].EffectivePercent.Equal(dec("10")))
	assert.True(t, snap.Lines[0].EffectiveTotal.Equal(dec("720")))

	// Second line: declared 0% contradicts 180 from 200, back-solved to 10%.
	assert.True(t, snap.Lines[1].BackSolved)
	assert.True(t, snap.Lines[1].EffectivePercent.Equal(dec("10")))
	assert.True(t, snap.Lines[1].EffectiveTotal.Equal(dec("180")))

	// subtotal 1000, discount 100, freight 50 -> 950 BOB, 190 USD, CIF 225.
	assert.True(t, snap.Totals.TotalSource.Equal(dec("950")), "source = %s", snap.Totals.TotalSource)
	assert.True(t, snap.Totals.TotalTarget.Equal(dec("190")))
	assert.True(t, snap.Totals.TotalCIFTarget.Equal(dec("225")))
	assert.False(t, snap.Stale())
}

func TestComposeAggregatesShipmentAndSkipsBadDimensions(t *testing.T) {
	q := fixtureQuote()
	eng := newEngine(newMemStore(q), fx.Rate{Value: dec("5")})

	snap, err := eng.SnapshotByID(context.Background(), q.ID, SurfaceDetail)
	require.NoError(t, err)

	// 4*12.5 + 2*4 of weight; only the first line has parseable dimensions.
	assert.True(t, snap.Shipment.WeightKg.Equal(dec("58")))
	assert.True(t, snap.Shipment.VolumeM3.Equal(dec("0.12")), "volume = %s", snap.Shipment.VolumeM3)
	assert.Equal(t, []int{1}, snap.Shipment.SkippedDimensions)
}

func TestAllSurfacesShareOneSetOfFigures(t *testing.T) {
	q := fixtureQuote()
	store := newMemStore(q)
	eng := newEngine(store, fx.Rate{Source: "BOB", Target: "USD", Value: dec("6.96")})

	detail, err := eng.SnapshotByID(context.Background(), q.ID, SurfaceDetail)
	require.NoError(t, err)
	print_, err := eng.SnapshotByID(context.Background(), q.ID, SurfacePrint)
	require.NoError(t, err)
	public, err := eng.SnapshotByToken(context.Background(), q.ShareToken, SurfacePublic)
	require.NoError(t, err)

	for _, snap := range []Snapshot{print_, public} {
		assert.True(t, snap.Totals.TotalSource.Equal(detail.Totals.TotalSource))
		assert.True(t, snap.Totals.TotalCIFTarget.Equal(detail.Totals.TotalCIFTarget))
		assert.True(t, snap.Rate.Value.Equal(detail.Rate.Value))
	}

	// The public projection strips internal diagnostics but not figures.
	pv := NewPublicView(public)
	dv := NewDetailView(detail)
	assert.True(t, pv.Totals.TotalCIFTarget.Equal(dv.Totals.TotalCIFTarget))
	assert.False(t, pv.Lines[1].BackSolved)
	assert.True(t, dv.Lines[1].BackSolved)
}

func TestComposeWithFallbackRateMarksSnapshotStale(t *testing.T) {
	q := fixtureQuote()
	eng := newEngine(newMemStore(q), fx.Rate{Value: dec("6.96"), Fallback: true})

	snap, err := eng.SnapshotByID(context.Background(), q.ID, SurfaceDetail)
	require.NoError(t, err)

	assert.True(t, snap.Stale())
	assert.True(t, NewDetailView(snap).Rate.Stale)
}

func TestRecalculatePersistsComputedTotals(t *testing.T) {
	q := fixtureQuote()
	store := newMemStore(q)
	eng := newEngine(store, fx.Rate{Value: dec("5")})

	snap, err := eng.Recalculate(context.Background(), q.ID)
	require.NoError(t, err)

	saved, ok := store.saved[q.ID]
	require.True(t, ok)
	assert.True(t, saved.TotalSource.Equal(snap.Totals.TotalSource))
	assert.True(t, saved.TotalCIFTarget.Equal(dec("225")))
}

func TestHandlerDetailAndPublic(t *testing.T) {
	q := fixtureQuote()
	eng := newEngine(newMemStore(q), fx.Rate{Source: "BOB", Target: "USD", Value: dec("5")})
	h := NewHandler(HandlerConfig{Engine: eng})

	r := chi.NewRouter()
	r.Get("/api/v1/quotes/{quoteID}", h.Detail)
	r.Get("/api/v1/public/quotes/{token}", h.Public)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/"+q.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data DetailView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, q.Reference, body.Data.Reference)
	assert.Equal(t, "190", body.Data.Totals.TotalTarget.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/quotes/"+q.ShareToken, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/quotes/unknown-token", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quotes/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
