package models

import "errors"

// Engine error taxonomy. All of these are local, recoverable conditions the
// caller handles per-call; only storage I/O failures are terminal for an
// operation and those are surfaced verbatim, never wrapped into this set.
var (
	// ErrInvalidQuantity rejects a buy or sell with a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInsufficientHoldings rejects a sell exceeding the held quantity.
	ErrInsufficientHoldings = errors.New("sell quantity exceeds holding")

	// ErrInsufficientFunds rejects a cash debit that would overdraw an account.
	ErrInsufficientFunds = errors.New("insufficient cash balance")

	// ErrRateUnavailable indicates a currency is absent from the FX rate table.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrInsufficientHistory rejects attribution with fewer than two snapshots.
	ErrInsufficientHistory = errors.New("insufficient snapshot history")

	// ErrUnsupportedCurrencyTransfer rejects a transfer between cash accounts
	// of different currencies.
	ErrUnsupportedCurrencyTransfer = errors.New("cross-currency transfer not supported")

	// ErrUnknownAccount indicates a transaction names a cash account that
	// does not exist in the portfolio.
	ErrUnknownAccount = errors.New("cash account not found")

	// ErrCurrencyMismatch indicates a transaction currency differs from the
	// currency of the cash account it flows through.
	ErrCurrencyMismatch = errors.New("transaction currency does not match account")

	// ErrInvalidAmount rejects a non-positive cash amount.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidTransaction rejects a transaction that is structurally
	// malformed: unknown kind, missing user, or missing asset fields.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrNotFound indicates a requested document does not exist in the store.
	ErrNotFound = errors.New("not found")
)
