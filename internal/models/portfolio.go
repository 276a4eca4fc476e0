// Package models defines data structures for Keel
package models

import (
	"strings"
	"time"
)

// QuantityEpsilon is the tolerance below which a holding quantity or cash
// balance is considered zero and the row is removed from the portfolio.
const QuantityEpsilon = 1e-9

// AssetClass partitions holdings within a portfolio.
type AssetClass string

const (
	AssetClassStock     AssetClass = "stock"
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassGold      AssetClass = "gold"
	AssetClassCash      AssetClass = "cash"
	AssetClassLiability AssetClass = "liability"
)

// validAssetClasses lists all accepted asset classes.
var validAssetClasses = map[AssetClass]bool{
	AssetClassStock:     true,
	AssetClassCrypto:    true,
	AssetClassGold:      true,
	AssetClassCash:      true,
	AssetClassLiability: true,
}

// ValidAssetClass returns true if c is a valid asset class.
func ValidAssetClass(c AssetClass) bool {
	return validAssetClasses[c]
}

// ParseAssetClass normalizes a user-supplied asset class string.
func ParseAssetClass(s string) (AssetClass, bool) {
	c := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	return c, validAssetClasses[c]
}

// Holding represents a cost-tracked position (stock, crypto, or gold).
// Quantity is shares, coin units, or grams; AverageCost is per unit in the
// holding's currency. Crypto and gold cost bases are conventionally USD.
type Holding struct {
	Identifier  string    `json:"identifier"`
	Quantity    float64   `json:"quantity"`
	AverageCost float64   `json:"average_cost"`
	Currency    string    `json:"currency"`
	LastPrice   float64   `json:"last_price,omitempty"` // price used at last valuation/snapshot
	LastUpdated time.Time `json:"last_updated"`
}

// CostBasis returns the remaining cost basis (quantity × average cost).
func (h Holding) CostBasis() float64 {
	return h.Quantity * h.AverageCost
}

// CashAccount represents a cash balance in a single currency. Balance >= 0.
type CashAccount struct {
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// Liability represents an outstanding obligation (loan, mortgage, card).
// Balance is the amount owed; its sign is unconstrained.
type Liability struct {
	Name     string  `json:"name"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// Portfolio is the complete set of holdings for one user, partitioned by
// asset class. Identifiers are unique within a class; buys against an
// existing identifier merge into it. A Portfolio is owned by exactly one
// user and mutated only through ledger transactions.
//
// Persistence is a plain read-modify-write cycle: two concurrent sessions
// for the same user race with last-write-wins. That is the accepted
// concurrency policy, not an oversight.
type Portfolio struct {
	UserID       string        `json:"user_id"`
	BaseCurrency string        `json:"base_currency"`
	Stocks       []Holding     `json:"stocks"`
	Crypto       []Holding     `json:"crypto"`
	Gold         []Holding     `json:"gold"`
	CashAccounts []CashAccount `json:"cash_accounts"`
	Liabilities  []Liability   `json:"liabilities"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewPortfolio creates an empty portfolio for a user.
func NewPortfolio(userID, baseCurrency string) *Portfolio {
	now := time.Now()
	return &Portfolio{
		UserID:       userID,
		BaseCurrency: baseCurrency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HoldingsByClass returns the holding slice for a cost-tracked asset class,
// or nil for cash/liability classes.
func (p *Portfolio) HoldingsByClass(class AssetClass) []Holding {
	switch class {
	case AssetClassStock:
		return p.Stocks
	case AssetClassCrypto:
		return p.Crypto
	case AssetClassGold:
		return p.Gold
	default:
		return nil
	}
}

// setHoldings replaces the holding slice for a cost-tracked asset class.
func (p *Portfolio) setHoldings(class AssetClass, holdings []Holding) {
	switch class {
	case AssetClassStock:
		p.Stocks = holdings
	case AssetClassCrypto:
		p.Crypto = holdings
	case AssetClassGold:
		p.Gold = holdings
	}
}

// FindHolding returns a pointer to the holding with the given identifier in
// the given class, or nil.
func (p *Portfolio) FindHolding(class AssetClass, identifier string) *Holding {
	holdings := p.HoldingsByClass(class)
	for i := range holdings {
		if holdings[i].Identifier == identifier {
			return &holdings[i]
		}
	}
	return nil
}

// UpsertHolding merges h into the class slice, replacing an existing row
// with the same identifier or appending a new one.
func (p *Portfolio) UpsertHolding(class AssetClass, h Holding) {
	holdings := p.HoldingsByClass(class)
	for i := range holdings {
		if holdings[i].Identifier == h.Identifier {
			holdings[i] = h
			return
		}
	}
	p.setHoldings(class, append(holdings, h))
}

// RemoveHolding deletes the holding with the given identifier from the class
// slice. Zero-quantity holdings are removed, never retained as zero rows.
func (p *Portfolio) RemoveHolding(class AssetClass, identifier string) {
	holdings := p.HoldingsByClass(class)
	for i := range holdings {
		if holdings[i].Identifier == identifier {
			p.setHoldings(class, append(holdings[:i], holdings[i+1:]...))
			return
		}
	}
}

// FindCash returns a pointer to the named cash account, or nil.
func (p *Portfolio) FindCash(name string) *CashAccount {
	for i := range p.CashAccounts {
		if p.CashAccounts[i].Name == name {
			return &p.CashAccounts[i]
		}
	}
	return nil
}

// RemoveCash deletes the named cash account.
func (p *Portfolio) RemoveCash(name string) {
	for i := range p.CashAccounts {
		if p.CashAccounts[i].Name == name {
			p.CashAccounts = append(p.CashAccounts[:i], p.CashAccounts[i+1:]...)
			return
		}
	}
}

// FindLiability returns a pointer to the named liability, or nil.
func (p *Portfolio) FindLiability(name string) *Liability {
	for i := range p.Liabilities {
		if p.Liabilities[i].Name == name {
			return &p.Liabilities[i]
		}
	}
	return nil
}

// RemoveLiability deletes the named liability.
func (p *Portfolio) RemoveLiability(name string) {
	for i := range p.Liabilities {
		if p.Liabilities[i].Name == name {
			p.Liabilities = append(p.Liabilities[:i], p.Liabilities[i+1:]...)
			return
		}
	}
}

// AssetIdentifiers returns the identifiers of all price-dependent holdings
// (stocks, crypto, gold), deduplicated across classes.
func (p *Portfolio) AssetIdentifiers() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, holdings := range [][]Holding{p.Stocks, p.Crypto, p.Gold} {
		for _, h := range holdings {
			if !seen[h.Identifier] {
				seen[h.Identifier] = true
				ids = append(ids, h.Identifier)
			}
		}
	}
	return ids
}

// Currencies returns every currency code that appears in the portfolio.
func (p *Portfolio) Currencies() []string {
	seen := make(map[string]bool)
	var codes []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	add(p.BaseCurrency)
	for _, holdings := range [][]Holding{p.Stocks, p.Crypto, p.Gold} {
		for _, h := range holdings {
			add(h.Currency)
		}
	}
	for _, c := range p.CashAccounts {
		add(c.Currency)
	}
	for _, l := range p.Liabilities {
		add(l.Currency)
	}
	return codes
}

// Clone returns a deep copy of the portfolio. Snapshots store clones so the
// live portfolio and historical records never alias.
func (p *Portfolio) Clone() *Portfolio {
	cp := *p
	cp.Stocks = append([]Holding(nil), p.Stocks...)
	cp.Crypto = append([]Holding(nil), p.Crypto...)
	cp.Gold = append([]Holding(nil), p.Gold...)
	cp.CashAccounts = append([]CashAccount(nil), p.CashAccounts...)
	cp.Liabilities = append([]Liability(nil), p.Liabilities...)
	return &cp
}
