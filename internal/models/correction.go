package models

// Correction describes a direct edit to a holding or balance made outside
// the transaction form. The ledger service translates it into the implied
// buy/sell (or income/expense) and records that synthesized transaction, so
// cost-basis history never diverges from the ledger.
type Correction struct {
	Class      AssetClass `json:"class"`
	Identifier string     `json:"identifier"`
	Currency   string     `json:"currency,omitempty"` // required when creating a new row

	// Stock/crypto/gold targets.
	NewQuantity    float64 `json:"new_quantity"`
	NewAverageCost float64 `json:"new_average_cost"`

	// Cash/liability targets.
	NewBalance float64 `json:"new_balance"`

	Note string `json:"note,omitempty"`
}
