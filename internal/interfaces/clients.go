// Package interfaces defines service contracts for Keel
package interfaces

import "context"

// PriceFeed returns last-known prices for asset identifiers. Identifiers
// with no available price are simply absent from the result map — the
// valuation engine degrades them to zero with an explicit warning.
type PriceFeed interface {
	GetPrices(ctx context.Context, identifiers []string) (map[string]float64, error)
}

// FXFeed returns the exchange-rate table for a base currency: currency code
// → units of that currency per one unit of the base currency. The base
// currency itself maps to 1.
type FXFeed interface {
	GetRates(ctx context.Context, baseCurrency string) (map[string]float64, error)
}

// MarketDataProvider is the single cached entry point for prices and rates.
// force bypasses the cache and repopulates it.
type MarketDataProvider interface {
	GetPrices(ctx context.Context, identifiers []string, force bool) (map[string]float64, error)
	GetRates(ctx context.Context, baseCurrency string, force bool) (map[string]float64, error)
}
