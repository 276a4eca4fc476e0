package models

// AttributionReport decomposes the net-worth change between two snapshots
// into market movement, cash flow, and currency-rate effects, all in the
// base currency.
//
// The three named components are deliberate approximations (market uses the
// minimum common quantity and start-snapshot rates; cash flow converts at
// start-snapshot rates; FX drifts the start-snapshot cash balances), so they
// do not sum to TotalChange in general. Residual is the exact remainder and
// is always reported alongside them — it absorbs realized trading P&L and
// second-order interaction effects.
type AttributionReport struct {
	UserID       string `json:"user_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	BaseCurrency string `json:"base_currency"`

	TotalChange float64 `json:"total_change"`
	Market      float64 `json:"market"`
	CashFlow    float64 `json:"cash_flow"`
	FX          float64 `json:"fx"`
	Residual    float64 `json:"residual"`

	TransactionCount int `json:"transaction_count"`
}
