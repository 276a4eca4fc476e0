// Package ledger applies transactions to portfolios and maintains
// weighted-average cost basis. The transaction log is append-only and is
// the single source of truth for every holding and cash mutation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// Service implements interfaces.LedgerService.
type Service struct {
	storage      interfaces.StorageManager
	baseCurrency string
	logger       *common.Logger
}

// NewService creates a new ledger service.
func NewService(storage interfaces.StorageManager, baseCurrency string, logger *common.Logger) *Service {
	return &Service{
		storage:      storage,
		baseCurrency: baseCurrency,
		logger:       logger,
	}
}

// Portfolio returns the user's live portfolio, or a fresh empty one when the
// user has no stored portfolio yet.
func (s *Service) Portfolio(ctx context.Context, userID string) (*models.Portfolio, error) {
	p, err := s.storage.PortfolioStore().Get(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return models.NewPortfolio(userID, s.baseCurrency), nil
		}
		return nil, fmt.Errorf("failed to load portfolio for %s: %w", userID, err)
	}
	return p, nil
}

// Transactions lists the user's ledger windowed to from < Timestamp <= to.
// Zero times disable the corresponding bound.
func (s *Service) Transactions(ctx context.Context, userID string, from, to time.Time) ([]models.Transaction, error) {
	if from.IsZero() && to.IsZero() {
		return s.storage.LedgerStore().List(ctx, userID)
	}
	return s.storage.LedgerStore().ListRange(ctx, userID, from, to)
}

// Apply validates and applies one transaction: the portfolio mutates, the
// transaction is appended to the ledger, and the portfolio is saved.
// Validation failures reject the transaction entirely — nothing is recorded.
func (s *Service) Apply(ctx context.Context, tx *models.Transaction) (*models.Portfolio, error) {
	if tx.UserID == "" {
		return nil, fmt.Errorf("%w: user_id is required", models.ErrInvalidTransaction)
	}
	if !models.ValidTransactionKind(tx.Kind) {
		return nil, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidTransaction, tx.Kind)
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}
	tx.CreatedAt = time.Now()

	portfolio, err := s.Portfolio(ctx, tx.UserID)
	if err != nil {
		return nil, err
	}

	if err := applyToPortfolio(portfolio, tx); err != nil {
		return nil, err
	}

	// The ledger is written before the portfolio: on a partial failure the
	// portfolio can be rebuilt by replaying transactions, not the reverse.
	if err := s.storage.LedgerStore().Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	portfolio.UpdatedAt = time.Now()
	if err := s.storage.PortfolioStore().Save(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.logger.Info().
		Str("user", tx.UserID).
		Str("kind", string(tx.Kind)).
		Str("account", tx.Account).
		Str("asset", tx.AssetIdentifier).
		Float64("amount", tx.Amount).
		Msg("Transaction applied")

	return portfolio, nil
}

// applyToPortfolio mutates the portfolio according to the transaction kind.
// It is a pure state transition over the in-memory portfolio — callable from
// tests without storage.
func applyToPortfolio(p *models.Portfolio, tx *models.Transaction) error {
	switch tx.Kind {
	case models.TxIncome:
		return applyIncome(p, tx)
	case models.TxExpense:
		return applyExpense(p, tx)
	case models.TxTransfer:
		return applyTransfer(p, tx)
	case models.TxBuy:
		return applyBuy(p, tx)
	case models.TxSell:
		return applySell(p, tx)
	default:
		return fmt.Errorf("%w: unknown kind %q", models.ErrInvalidTransaction, tx.Kind)
	}
}

// creditCash adds amount to the named account, creating it on first use.
func creditCash(p *models.Portfolio, name, currency string, amount float64) error {
	acct := p.FindCash(name)
	if acct == nil {
		p.CashAccounts = append(p.CashAccounts, models.CashAccount{
			Name:     name,
			Balance:  amount,
			Currency: currency,
		})
		return nil
	}
	if acct.Currency != currency {
		return fmt.Errorf("%w: account %s is %s, transaction is %s",
			models.ErrCurrencyMismatch, name, acct.Currency, currency)
	}
	acct.Balance += amount
	return nil
}

// debitCash subtracts amount from the named account. Overdrawing is
// rejected; a balance driven to zero removes the account row.
func debitCash(p *models.Portfolio, name, currency string, amount float64) error {
	acct := p.FindCash(name)
	if acct == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownAccount, name)
	}
	if acct.Currency != currency {
		return fmt.Errorf("%w: account %s is %s, transaction is %s",
			models.ErrCurrencyMismatch, name, acct.Currency, currency)
	}
	if acct.Balance < amount-models.QuantityEpsilon {
		return fmt.Errorf("%w: account %s has %.2f %s, need %.2f",
			models.ErrInsufficientFunds, name, acct.Balance, acct.Currency, amount)
	}
	acct.Balance -= amount
	if math.Abs(acct.Balance) <= models.QuantityEpsilon {
		p.RemoveCash(name)
	}
	return nil
}

func applyIncome(p *models.Portfolio, tx *models.Transaction) error {
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: income amount %.2f", models.ErrInvalidAmount, tx.Amount)
	}
	if tx.Account == "" {
		return fmt.Errorf("%w: income requires an account", models.ErrUnknownAccount)
	}
	return creditCash(p, tx.Account, tx.Currency, tx.Amount)
}

func applyExpense(p *models.Portfolio, tx *models.Transaction) error {
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: expense amount %.2f", models.ErrInvalidAmount, tx.Amount)
	}
	return debitCash(p, tx.Account, tx.Currency, tx.Amount)
}

// applyTransfer moves cash between two accounts of identical currency.
// Cross-currency transfers are explicitly rejected.
func applyTransfer(p *models.Portfolio, tx *models.Transaction) error {
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: transfer amount %.2f", models.ErrInvalidAmount, tx.Amount)
	}
	if tx.Account == "" || tx.CounterAccount == "" {
		return fmt.Errorf("%w: transfer requires source and destination accounts", models.ErrUnknownAccount)
	}
	src := p.FindCash(tx.Account)
	if src == nil {
		return fmt.Errorf("%w: %s", models.ErrUnknownAccount, tx.Account)
	}
	if src.Currency != tx.Currency {
		return fmt.Errorf("%w: source %s is %s, transaction is %s",
			models.ErrUnsupportedCurrencyTransfer, tx.Account, src.Currency, tx.Currency)
	}
	if dst := p.FindCash(tx.CounterAccount); dst != nil && dst.Currency != src.Currency {
		return fmt.Errorf("%w: %s is %s, %s is %s",
			models.ErrUnsupportedCurrencyTransfer, tx.Account, src.Currency, tx.CounterAccount, dst.Currency)
	}
	if err := debitCash(p, tx.Account, tx.Currency, tx.Amount); err != nil {
		return err
	}
	return creditCash(p, tx.CounterAccount, tx.Currency, tx.Amount)
}

// applyBuy merges a purchase into the holding, recomputing the weighted
// average cost. tx.Amount is the total cost; an Account, when named, funds
// the purchase from cash.
func applyBuy(p *models.Portfolio, tx *models.Transaction) error {
	if err := validateAssetTx(tx); err != nil {
		return err
	}
	qty := tx.AssetQuantity
	cost := tx.Amount

	if tx.Account != "" {
		if err := debitCash(p, tx.Account, tx.Currency, cost); err != nil {
			return err
		}
	}

	h := p.FindHolding(tx.AssetClass, tx.AssetIdentifier)
	if h == nil {
		p.UpsertHolding(tx.AssetClass, models.Holding{
			Identifier:  tx.AssetIdentifier,
			Quantity:    qty,
			AverageCost: cost / qty,
			Currency:    tx.Currency,
			LastUpdated: tx.Timestamp,
		})
		return nil
	}
	if h.Currency != tx.Currency {
		return fmt.Errorf("%w: holding %s is %s, transaction is %s",
			models.ErrCurrencyMismatch, tx.AssetIdentifier, h.Currency, tx.Currency)
	}
	h.AverageCost = (h.AverageCost*h.Quantity + cost) / (h.Quantity + qty)
	h.Quantity += qty
	h.LastUpdated = tx.Timestamp
	return nil
}

// applySell disposes part of a holding. tx.Amount is the total proceeds.
// Average cost never changes on a sell — the weighted-average method does
// not revise historical cost on partial disposal. Realized P&L is recorded
// on the transaction in the holding's currency.
func applySell(p *models.Portfolio, tx *models.Transaction) error {
	if err := validateAssetTx(tx); err != nil {
		return err
	}
	qty := tx.AssetQuantity

	h := p.FindHolding(tx.AssetClass, tx.AssetIdentifier)
	if h == nil {
		return fmt.Errorf("%w: no %s holding %q", models.ErrInsufficientHoldings, tx.AssetClass, tx.AssetIdentifier)
	}
	if h.Currency != tx.Currency {
		return fmt.Errorf("%w: holding %s is %s, transaction is %s",
			models.ErrCurrencyMismatch, tx.AssetIdentifier, h.Currency, tx.Currency)
	}
	if qty > h.Quantity+models.QuantityEpsilon {
		return fmt.Errorf("%w: sell %.6f of %.6f %s", models.ErrInsufficientHoldings, qty, h.Quantity, tx.AssetIdentifier)
	}

	realized := tx.Amount - qty*h.AverageCost
	tx.RealizedPL = &realized
	tx.PLCurrency = h.Currency

	if tx.Account != "" {
		if err := creditCash(p, tx.Account, tx.Currency, tx.Amount); err != nil {
			return err
		}
	}

	h.Quantity -= qty
	h.LastUpdated = tx.Timestamp
	if h.Quantity <= models.QuantityEpsilon {
		p.RemoveHolding(tx.AssetClass, tx.AssetIdentifier)
	}
	return nil
}

// validateAssetTx checks the fields shared by buy and sell.
func validateAssetTx(tx *models.Transaction) error {
	switch tx.AssetClass {
	case models.AssetClassStock, models.AssetClassCrypto, models.AssetClassGold:
	default:
		return fmt.Errorf("%w: asset class %q does not track cost basis", models.ErrInvalidTransaction, tx.AssetClass)
	}
	if tx.AssetIdentifier == "" {
		return fmt.Errorf("%w: asset identifier is required for %s", models.ErrInvalidTransaction, tx.Kind)
	}
	if tx.AssetQuantity <= 0 {
		return fmt.Errorf("%w: %s quantity %.6f", models.ErrInvalidQuantity, tx.Kind, tx.AssetQuantity)
	}
	if tx.Amount < 0 {
		return fmt.Errorf("%w: %s amount %.2f", models.ErrInvalidAmount, tx.Kind, tx.Amount)
	}
	return nil
}

// isNotFound reports whether err represents a missing document.
func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
