package models

import (
	"strings"
	"time"
)

// TransactionKind categorizes a ledger entry.
type TransactionKind string

const (
	TxIncome   TransactionKind = "income"
	TxExpense  TransactionKind = "expense"
	TxTransfer TransactionKind = "transfer"
	TxBuy      TransactionKind = "buy"
	TxSell     TransactionKind = "sell"
)

// validTransactionKinds lists all accepted transaction kinds.
var validTransactionKinds = map[TransactionKind]bool{
	TxIncome:   true,
	TxExpense:  true,
	TxTransfer: true,
	TxBuy:      true,
	TxSell:     true,
}

// ValidTransactionKind returns true if k is a valid transaction kind.
func ValidTransactionKind(k TransactionKind) bool {
	return validTransactionKinds[k]
}

// ParseTransactionKind normalizes a user-supplied kind string.
func ParseTransactionKind(s string) (TransactionKind, bool) {
	k := TransactionKind(strings.ToLower(strings.TrimSpace(s)))
	return k, validTransactionKinds[k]
}

// Transaction is an immutable, append-only ledger entry. Transactions are
// the only mutator of holdings and cash balances; they are never edited or
// deleted. Direct holding edits are translated into synthesized correction
// transactions so the ledger stays the single source of truth.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      TransactionKind `json:"kind"`

	// Amount is the cash value of the event in Currency: income/expense
	// amount, transfer amount, buy total cost, or sell total proceeds.
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// Account is the cash account the amount flows through. Empty on
	// buy/sell means the trade was funded externally and moves no cash.
	Account string `json:"account,omitempty"`

	// CounterAccount is the destination account for transfers.
	CounterAccount string `json:"counter_account,omitempty"`

	// Asset fields, set for buy/sell.
	AssetClass      AssetClass `json:"asset_class,omitempty"`
	AssetIdentifier string     `json:"asset_identifier,omitempty"`
	AssetQuantity   float64    `json:"asset_quantity,omitempty"`

	// RealizedPL is recorded on sells: proceeds − quantity × average cost,
	// denominated in PLCurrency (the holding's currency).
	RealizedPL *float64 `json:"realized_pl,omitempty"`
	PLCurrency string   `json:"pl_currency,omitempty"`

	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsCashInflow returns true if the kind adds to a cash balance.
// Income and sell proceeds add; expense and buy cost subtract.
func (k TransactionKind) IsCashInflow() bool {
	return k == TxIncome || k == TxSell
}

// IsCashOutflow returns true if the kind subtracts from a cash balance.
func (k TransactionKind) IsCashOutflow() bool {
	return k == TxExpense || k == TxBuy
}
