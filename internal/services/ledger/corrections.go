package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/bobmcallan/keel/internal/models"
)

const correctionNote = "manual correction"

// Correct translates a direct edit of a holding or balance into the implied
// buy/sell (or income/expense) transactions and applies them, so the ledger
// remains the single source of truth for P&L history.
//
// For cost-tracked classes a combined quantity+cost edit is expressed as a
// P&L-neutral liquidation at cost basis followed by a repurchase at the new
// basis: the resulting holding matches the requested state exactly and both
// legs are on the ledger. Liabilities sit outside the transaction taxonomy
// (transactions mutate holdings and cash only) and are edited in place.
func (s *Service) Correct(ctx context.Context, userID string, c models.Correction) (*models.Transaction, *models.Portfolio, error) {
	switch c.Class {
	case models.AssetClassStock, models.AssetClassCrypto, models.AssetClassGold:
		return s.correctHolding(ctx, userID, c)
	case models.AssetClassCash:
		return s.correctCash(ctx, userID, c)
	case models.AssetClassLiability:
		p, err := s.correctLiability(ctx, userID, c)
		return nil, p, err
	default:
		return nil, nil, fmt.Errorf("%w: unknown asset class %q", models.ErrInvalidTransaction, c.Class)
	}
}

func (s *Service) correctHolding(ctx context.Context, userID string, c models.Correction) (*models.Transaction, *models.Portfolio, error) {
	if c.NewQuantity < 0 {
		return nil, nil, fmt.Errorf("%w: corrected quantity %.6f", models.ErrInvalidQuantity, c.NewQuantity)
	}

	portfolio, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var old models.Holding
	currency := c.Currency
	if h := portfolio.FindHolding(c.Class, c.Identifier); h != nil {
		old = *h
		currency = h.Currency
	}
	if currency == "" {
		return nil, nil, fmt.Errorf("%w: currency is required to create %s %q", models.ErrInvalidTransaction, c.Class, c.Identifier)
	}

	sameQty := math.Abs(c.NewQuantity-old.Quantity) <= models.QuantityEpsilon
	sameAvg := math.Abs(c.NewAverageCost-old.AverageCost) <= models.QuantityEpsilon
	if sameQty && sameAvg {
		return nil, portfolio, nil
	}

	note := c.Note
	if note == "" {
		note = correctionNote
	}

	// Liquidate the existing position at cost basis (realized P&L zero).
	var last *models.Transaction
	if old.Quantity > models.QuantityEpsilon {
		sell := &models.Transaction{
			UserID:          userID,
			Kind:            models.TxSell,
			Amount:          old.CostBasis(),
			Currency:        currency,
			AssetClass:      c.Class,
			AssetIdentifier: c.Identifier,
			AssetQuantity:   old.Quantity,
			Note:            note,
		}
		if _, err := s.Apply(ctx, sell); err != nil {
			return nil, nil, err
		}
		last = sell
	}

	// Rebuild at the corrected quantity and average cost.
	if c.NewQuantity > models.QuantityEpsilon {
		buy := &models.Transaction{
			UserID:          userID,
			Kind:            models.TxBuy,
			Amount:          c.NewQuantity * c.NewAverageCost,
			Currency:        currency,
			AssetClass:      c.Class,
			AssetIdentifier: c.Identifier,
			AssetQuantity:   c.NewQuantity,
			Note:            note,
		}
		if _, err := s.Apply(ctx, buy); err != nil {
			return nil, nil, err
		}
		last = buy
	}

	portfolio, err = s.Portfolio(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return last, portfolio, nil
}

func (s *Service) correctCash(ctx context.Context, userID string, c models.Correction) (*models.Transaction, *models.Portfolio, error) {
	if c.NewBalance < 0 {
		return nil, nil, fmt.Errorf("%w: corrected balance %.2f", models.ErrInvalidAmount, c.NewBalance)
	}

	portfolio, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var oldBalance float64
	currency := c.Currency
	if acct := portfolio.FindCash(c.Identifier); acct != nil {
		oldBalance = acct.Balance
		currency = acct.Currency
	}
	if currency == "" {
		return nil, nil, fmt.Errorf("%w: currency is required to create cash account %q", models.ErrInvalidTransaction, c.Identifier)
	}

	delta := c.NewBalance - oldBalance
	if math.Abs(delta) <= models.QuantityEpsilon {
		return nil, portfolio, nil
	}

	note := c.Note
	if note == "" {
		note = correctionNote
	}

	tx := &models.Transaction{
		UserID:   userID,
		Currency: currency,
		Account:  c.Identifier,
		Note:     note,
	}
	if delta > 0 {
		tx.Kind = models.TxIncome
		tx.Amount = delta
	} else {
		tx.Kind = models.TxExpense
		tx.Amount = -delta
	}

	portfolio, err = s.Apply(ctx, tx)
	if err != nil {
		return nil, nil, err
	}
	return tx, portfolio, nil
}

func (s *Service) correctLiability(ctx context.Context, userID string, c models.Correction) (*models.Portfolio, error) {
	portfolio, err := s.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	if l := portfolio.FindLiability(c.Identifier); l != nil {
		if math.Abs(c.NewBalance) <= models.QuantityEpsilon {
			portfolio.RemoveLiability(c.Identifier)
		} else {
			l.Balance = c.NewBalance
		}
	} else {
		if c.Currency == "" {
			return nil, fmt.Errorf("%w: currency is required to create liability %q", models.ErrInvalidTransaction, c.Identifier)
		}
		if math.Abs(c.NewBalance) > models.QuantityEpsilon {
			portfolio.Liabilities = append(portfolio.Liabilities, models.Liability{
				Name:     c.Identifier,
				Balance:  c.NewBalance,
				Currency: c.Currency,
			})
		}
	}

	if err := s.storage.PortfolioStore().Save(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}
	s.logger.Info().Str("user", userID).Str("liability", c.Identifier).Float64("balance", c.NewBalance).Msg("Liability corrected")
	return portfolio, nil
}
