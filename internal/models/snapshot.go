package models

import "time"

// SnapshotDateFormat is the calendar-day key format for snapshots.
const SnapshotDateFormat = "2006-01-02"

// Subtotals holds per-asset-class totals in the base currency.
type Subtotals struct {
	Stocks float64 `json:"stocks"`
	Crypto float64 `json:"crypto"`
	Gold   float64 `json:"gold"`
	Cash   float64 `json:"cash"`
}

// Snapshot is an immutable, point-in-time, per-calendar-day record of a
// user's portfolio and its valuation. At most one snapshot exists per
// (user, date); it is replaced wholesale or left untouched, never mutated.
type Snapshot struct {
	UserID       string             `json:"user_id"`
	Date         string             `json:"date"` // YYYY-MM-DD
	BaseCurrency string             `json:"base_currency"`
	Rates        map[string]float64 `json:"base_currency_rates"` // currency → units per 1 base unit

	TotalAssets      float64   `json:"total_assets"`
	TotalLiabilities float64   `json:"total_liabilities"`
	NetWorth         float64   `json:"net_worth"`
	Subtotals        Subtotals `json:"subtotals"`

	// Portfolio is a deep copy taken at snapshot time. Holding rows carry
	// LastPrice, the per-unit price used in this snapshot's valuation.
	Portfolio *Portfolio `json:"portfolio"`

	CreatedAt time.Time `json:"created_at"`
}

// ValuationLine is the computed market value of one portfolio row.
type ValuationLine struct {
	Class       AssetClass `json:"class"`
	Identifier  string     `json:"identifier"`
	Quantity    float64    `json:"quantity"`
	Price       float64    `json:"price"` // per unit, native currency (0 when unavailable)
	Currency    string     `json:"currency"`
	NativeValue float64    `json:"native_value"`
	BaseValue   float64    `json:"base_value"`
}

// Valuation is the result of valuing a portfolio against current prices and
// rates. It is computed on demand and not persisted directly; the snapshot
// manager materializes at most one per calendar day.
type Valuation struct {
	UserID       string             `json:"user_id"`
	AsOf         time.Time          `json:"as_of"`
	BaseCurrency string             `json:"base_currency"`
	Rates        map[string]float64 `json:"rates"`
	Lines        []ValuationLine    `json:"lines"`

	TotalAssets      float64   `json:"total_assets"`
	TotalLiabilities float64   `json:"total_liabilities"`
	NetWorth         float64   `json:"net_worth"`
	Subtotals        Subtotals `json:"subtotals"`

	// Warnings names every identifier or currency whose market data was
	// unavailable. The totals silently under-count those rows, so the list
	// must reach the caller, not just a log line.
	Warnings []string `json:"warnings,omitempty"`
}
