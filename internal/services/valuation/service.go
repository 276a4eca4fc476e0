// Package valuation computes market values for a portfolio: per-holding
// value in the holding's currency, conversion to the base currency, and
// aggregate totals. Missing market data degrades to zero with an explicit
// warning on the result — never a silently short total.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/fx"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// GramsPerTroyOunce converts a per-ounce gold price to per-gram.
const GramsPerTroyOunce = 31.1035

// Service implements interfaces.ValuationService.
type Service struct {
	market       interfaces.MarketDataProvider
	goldPerOunce bool // gold prices quoted per troy ounce rather than per gram
	logger       *common.Logger
}

// NewService creates a valuation service. goldPriceUnit is "ounce" or "gram".
func NewService(market interfaces.MarketDataProvider, goldPriceUnit string, logger *common.Logger) *Service {
	return &Service{
		market:       market,
		goldPerOunce: goldPriceUnit != "gram",
		logger:       logger,
	}
}

// Revalue values the portfolio against current prices and rates. force
// bypasses the market-data cache. The portfolio itself is not mutated.
func (s *Service) Revalue(ctx context.Context, portfolio *models.Portfolio, force bool) (*models.Valuation, error) {
	base := portfolio.BaseCurrency
	v := &models.Valuation{
		UserID:       portfolio.UserID,
		AsOf:         time.Now(),
		BaseCurrency: base,
	}

	rates, err := s.market.GetRates(ctx, base, force)
	if err != nil {
		// Degrade rather than fail: every conversion falls back to 1 and is
		// individually warned below.
		s.logger.Warn().Err(err).Str("base", base).Msg("FX rates unavailable, falling back to 1:1")
		v.Warnings = append(v.Warnings, fmt.Sprintf("fx rates unavailable for base %s", base))
		rates = map[string]float64{base: 1}
	}
	v.Rates = rates

	prices := map[string]float64{}
	if ids := portfolio.AssetIdentifiers(); len(ids) > 0 {
		prices, err = s.market.GetPrices(ctx, ids, force)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Price feed unavailable, valuing affected holdings at 0")
			v.Warnings = append(v.Warnings, "price feed unavailable")
			prices = map[string]float64{}
		}
	}

	warnedRates := make(map[string]bool)
	convert := func(amount float64, currency string) float64 {
		value, fellBack := fx.ConvertOrFallback(amount, currency, base, rates)
		if fellBack && !warnedRates[currency] {
			warnedRates[currency] = true
			s.logger.Warn().Str("currency", currency).Str("base", base).Msg("Rate unavailable, treating as 1")
			v.Warnings = append(v.Warnings, fmt.Sprintf("rate unavailable for %s, treated as 1", currency))
		}
		return value
	}

	valueClass := func(class models.AssetClass, holdings []models.Holding) float64 {
		var subtotal float64
		for _, h := range holdings {
			price, ok := prices[h.Identifier]
			if !ok {
				v.Warnings = append(v.Warnings, fmt.Sprintf("price unavailable for %s, valued at 0", h.Identifier))
				price = 0
			}
			if class == models.AssetClassGold && s.goldPerOunce {
				price /= GramsPerTroyOunce
			}
			native := h.Quantity * price
			baseValue := convert(native, h.Currency)
			v.Lines = append(v.Lines, models.ValuationLine{
				Class:       class,
				Identifier:  h.Identifier,
				Quantity:    h.Quantity,
				Price:       price,
				Currency:    h.Currency,
				NativeValue: native,
				BaseValue:   baseValue,
			})
			subtotal += baseValue
		}
		return subtotal
	}

	v.Subtotals.Stocks = valueClass(models.AssetClassStock, portfolio.Stocks)
	v.Subtotals.Crypto = valueClass(models.AssetClassCrypto, portfolio.Crypto)
	v.Subtotals.Gold = valueClass(models.AssetClassGold, portfolio.Gold)

	for _, acct := range portfolio.CashAccounts {
		baseValue := convert(acct.Balance, acct.Currency)
		v.Lines = append(v.Lines, models.ValuationLine{
			Class:       models.AssetClassCash,
			Identifier:  acct.Name,
			Quantity:    1,
			Currency:    acct.Currency,
			NativeValue: acct.Balance,
			BaseValue:   baseValue,
		})
		v.Subtotals.Cash += baseValue
	}

	for _, l := range portfolio.Liabilities {
		baseValue := convert(l.Balance, l.Currency)
		v.Lines = append(v.Lines, models.ValuationLine{
			Class:       models.AssetClassLiability,
			Identifier:  l.Name,
			Quantity:    1,
			Currency:    l.Currency,
			NativeValue: l.Balance,
			BaseValue:   baseValue,
		})
		v.TotalLiabilities += baseValue
	}

	v.TotalAssets = v.Subtotals.Stocks + v.Subtotals.Crypto + v.Subtotals.Gold + v.Subtotals.Cash
	v.NetWorth = v.TotalAssets - v.TotalLiabilities

	s.logger.Debug().
		Str("user", portfolio.UserID).
		Float64("net_worth", v.NetWorth).
		Int("warnings", len(v.Warnings)).
		Msg("Portfolio revalued")

	return v, nil
}
