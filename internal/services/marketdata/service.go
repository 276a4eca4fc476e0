// Package marketdata is the single cached entry point for prices and FX
// rates. One component, one configurable TTL, one explicit force-refresh
// switch — callers never cache feed results themselves.
package marketdata

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
)

// Service implements interfaces.MarketDataProvider over a PriceFeed and an
// FXFeed with a bounded-TTL cache.
type Service struct {
	prices interfaces.PriceFeed
	rates  interfaces.FXFeed
	cache  *gocache.Cache
	ttl    time.Duration
	logger *common.Logger
}

// NewService creates a cached market-data provider with the given TTL.
func NewService(prices interfaces.PriceFeed, rates interfaces.FXFeed, ttl time.Duration, logger *common.Logger) *Service {
	return &Service{
		prices: prices,
		rates:  rates,
		cache:  gocache.New(ttl, 10*time.Minute),
		ttl:    ttl,
		logger: logger,
	}
}

func priceKey(id string) string   { return "price:" + id }
func ratesKey(base string) string { return "rates:" + base }

func copyRates(table map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(table))
	for code, rate := range table {
		out[code] = rate
	}
	return out
}

// GetPrices returns last-known prices per identifier. Identifiers the feed
// cannot price are absent from the result. force bypasses the cache for all
// requested identifiers and repopulates it.
func (s *Service) GetPrices(ctx context.Context, identifiers []string, force bool) (map[string]float64, error) {
	result := make(map[string]float64, len(identifiers))
	var missing []string

	if force {
		missing = identifiers
	} else {
		for _, id := range identifiers {
			if v, ok := s.cache.Get(priceKey(id)); ok {
				result[id] = v.(float64)
			} else {
				missing = append(missing, id)
			}
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := s.prices.GetPrices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("price feed failed: %w", err)
	}
	for id, price := range fetched {
		s.cache.Set(priceKey(id), price, s.ttl)
		result[id] = price
	}

	s.logger.Debug().
		Int("requested", len(identifiers)).
		Int("fetched", len(fetched)).
		Bool("force", force).
		Msg("Prices resolved")

	return result, nil
}

// GetRates returns the FX rate table for the base currency, with the base
// itself mapped to 1. force bypasses the cache.
func (s *Service) GetRates(ctx context.Context, baseCurrency string, force bool) (map[string]float64, error) {
	if !force {
		if v, ok := s.cache.Get(ratesKey(baseCurrency)); ok {
			// Callers get their own copy; the cached table is never shared.
			return copyRates(v.(map[string]float64)), nil
		}
	}

	fetched, err := s.rates.GetRates(ctx, baseCurrency)
	if err != nil {
		return nil, fmt.Errorf("fx feed failed: %w", err)
	}

	table := copyRates(fetched)
	table[baseCurrency] = 1

	s.cache.Set(ratesKey(baseCurrency), table, s.ttl)

	s.logger.Debug().
		Str("base", baseCurrency).
		Int("currencies", len(table)).
		Bool("force", force).
		Msg("FX rates resolved")

	return copyRates(table), nil
}
