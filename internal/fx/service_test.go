package fx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andeantrade/cotiza-api/internal/fx"
	"github.com/andeantrade/cotiza-api/internal/resilience"
)

type stubProvider struct {
	rate  fx.Rate
	err   error
	calls int
}

func (s *stubProvider) FetchRate(_ context.Context, source, target string) (fx.Rate, error) {
	s.calls++
	if s.err != nil {
		return fx.Rate{}, s.err
	}
	rate := s.rate
	rate.Source = source
	rate.Target = target
	return rate, nil
}

func newCache(t *testing.T) (*fx.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &fx.Cache{R: rdb, TTL: time.Minute}, mr
}

func TestResolveCachesProviderResult(t *testing.T) {
	cache, _ := newCache(t)
	provider := &stubProvider{rate: fx.Rate{Value: decimal.RequireFromString("6.90"), FetchedAt: time.Now()}}
	svc := &fx.Service{
		Source:   "BOB",
		Target:   "USD",
		Provider: provider,
		Cache:    cache,
		Logger:   zerolog.Nop(),
	}

	first := svc.Resolve(context.Background())
	require.False(t, first.Fallback)
	require.True(t, first.Value.Equal(decimal.RequireFromString("6.90")))

	second := svc.Resolve(context.Background())
	require.True(t, second.Value.Equal(first.Value))
	require.Equal(t, 1, provider.calls, "second resolve must hit the cache")
}

func TestResolveFallsBackWhenProviderFails(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	svc := &fx.Service{
		Source:       "BOB",
		Target:       "USD",
		FallbackRate: decimal.RequireFromString("6.96"),
		Provider:     provider,
		Logger:       zerolog.Nop(),
	}

	rate := svc.Resolve(context.Background())
	require.True(t, rate.Fallback, "fallback rate must be marked stale")
	require.True(t, rate.Value.Equal(decimal.RequireFromString("6.96")))
	require.WithinDuration(t, time.Now(), rate.FetchedAt, time.Second)
}

func TestRefreshRepopulatesCache(t *testing.T) {
	cache, _ := newCache(t)
	provider := &stubProvider{rate: fx.Rate{Value: decimal.RequireFromString("7.01"), FetchedAt: time.Now()}}
	svc := &fx.Service{Source: "BOB", Target: "USD", Provider: provider, Cache: cache, Logger: zerolog.Nop()}

	require.NoError(t, svc.Refresh(context.Background()))

	cached, ok, err := cache.Get(context.Background(), "BOB", "USD")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cached.Value.Equal(decimal.RequireFromString("7.01")))
}

func TestClientFetchRate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "USD", r.URL.Query().Get("from"))
		require.Equal(t, "BOB", r.URL.Query().Get("to"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"convertedAmount": 6.95,
			"lastUpdated":     time.Now().Format(time.RFC3339),
		})
	}))
	defer upstream.Close()

	client := &fx.Client{
		Endpoint: upstream.URL,
		HTTP: &resilience.HTTPClient{
			Client:      upstream.Client(),
			MaxAttempts: 2,
			Target:      "fx-test",
		},
	}
	rate, err := client.FetchRate(context.Background(), "BOB", "USD")
	require.NoError(t, err)
	require.True(t, rate.Value.Equal(decimal.RequireFromString("6.95")))
	require.Equal(t, "BOB", rate.Source)
	require.Equal(t, "USD", rate.Target)
}

func TestClientRejectsNonPositiveRate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"convertedAmount": 0})
	}))
	defer upstream.Close()

	client := &fx.Client{
		Endpoint: upstream.URL,
		HTTP:     &resilience.HTTPClient{Client: upstream.Client(), MaxAttempts: 1},
	}
	_, err := client.FetchRate(context.Background(), "BOB", "USD")
	require.Error(t, err)
}
