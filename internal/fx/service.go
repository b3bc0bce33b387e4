package fx

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/events"
	"github.com/andeantrade/cotiza-api/internal/obs"
)

// Service resolves the exchange rate for the configured currency pair.
// Resolution never fails: a cache miss falls through to the provider, and a
// provider failure substitutes the documented fallback rate with a stale
// marker. Renderers see an error-free API by design of the upstream spec.
type Service struct {
	Source       string
	Target       string
	FallbackRate decimal.Decimal
	Provider     Provider
	Cache        *Cache
	Logger       zerolog.Logger
	Events       *events.Bus
}

// Resolve returns the current rate for the pair. The result should be used
// for a single render session; use NewConverter to memoize conversions.
func (s *Service) Resolve(ctx context.Context) Rate {
	if rate, ok := s.fromCache(ctx); ok {
		s.count("cache")
		return rate
	}
	if s.Provider != nil {
		rate, err := s.Provider.FetchRate(ctx, s.Source, s.Target)
		if err == nil {
			s.count("provider")
			if s.Cache != nil {
				if cacheErr := s.Cache.Set(ctx, rate); cacheErr != nil {
					s.Logger.Debug().Err(cacheErr).Msg("fx cache write failed")
				}
			}
			return rate
		}
		s.Logger.Warn().Err(err).
			Str("source", s.Source).
			Str("target", s.Target).
			Msg("exchange rate fetch failed, using fallback")
	}
	return s.fallback(ctx)
}

// Refresh forces a provider fetch and repopulates the shared cache. It is
// invoked by the background refresh task, bypassing the cache-hit path.
func (s *Service) Refresh(ctx context.Context) error {
	if s.Provider == nil {
		return nil
	}
	rate, err := s.Provider.FetchRate(ctx, s.Source, s.Target)
	if err != nil {
		return err
	}
	if s.Cache != nil {
		return s.Cache.Set(ctx, rate)
	}
	return nil
}

func (s *Service) fromCache(ctx context.Context) (Rate, bool) {
	if s.Cache == nil {
		return Rate{}, false
	}
	rate, ok, err := s.Cache.Get(ctx, s.Source, s.Target)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("fx cache read failed")
		return Rate{}, false
	}
	return rate, ok
}

func (s *Service) fallback(ctx context.Context) Rate {
	value := s.FallbackRate
	if value.Sign() <= 0 {
		value = DefaultFallbackRate
	}
	rate := Rate{
		Source:    s.Source,
		Target:    s.Target,
		Value:     value,
		FetchedAt: time.Now(),
		Fallback:  true,
	}
	s.count("fallback")
	if obs.FxFallbackTotal != nil {
		obs.FxFallbackTotal.Inc()
	}
	if s.Events != nil {
		payload := map[string]any{
			"source": rate.Source,
			"target": rate.Target,
			"value":  rate.Value,
		}
		if _, err := s.Events.Emit(ctx, events.TopicFxRateFallback, s.pairID(), payload); err != nil {
			s.Logger.Debug().Err(err).Msg("emit fx fallback event")
		}
	}
	return rate
}

// pairID is a stable aggregate identifier derived from the currency pair.
func (s *Service) pairID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("fx/"+s.Source+"/"+s.Target))
}

func (s *Service) count(outcome string) {
	if obs.FxFetchTotal != nil {
		obs.FxFetchTotal.WithLabelValues(outcome).Inc()
	}
}
