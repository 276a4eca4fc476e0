package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/keel/internal/models"
)

// LedgerService applies transactions to portfolios. All holding and cash
// mutations flow through here; nothing writes quantity/cost fields directly.
type LedgerService interface {
	// Apply validates tx, mutates the user's portfolio, appends tx to the
	// ledger, and saves the portfolio. Returns the updated portfolio.
	Apply(ctx context.Context, tx *models.Transaction) (*models.Portfolio, error)

	// Correct translates a direct holding/balance edit into the implied
	// synthesized transaction and applies it.
	Correct(ctx context.Context, userID string, c models.Correction) (*models.Transaction, *models.Portfolio, error)

	// Portfolio returns the user's live portfolio, creating an empty one on
	// first use.
	Portfolio(ctx context.Context, userID string) (*models.Portfolio, error)

	// Transactions lists the user's ledger, optionally windowed to
	// from < Timestamp <= to (zero times disable the bound).
	Transactions(ctx context.Context, userID string, from, to time.Time) ([]models.Transaction, error)
}

// ValuationService computes market values for a portfolio.
type ValuationService interface {
	Revalue(ctx context.Context, portfolio *models.Portfolio, force bool) (*models.Valuation, error)
}

// SnapshotService materializes and serves per-calendar-day snapshots.
type SnapshotService interface {
	// EnsureSnapshot persists a snapshot for the valuation's calendar day if
	// none exists, and leaves an existing one untouched. The bool reports
	// whether a new snapshot was written.
	EnsureSnapshot(ctx context.Context, portfolio *models.Portfolio, valuation *models.Valuation) (*models.Snapshot, bool, error)

	// GetClosestSnapshot returns the most recent snapshot on or before
	// targetDate, or nil if the user's history starts after that date.
	GetClosestSnapshot(ctx context.Context, userID, targetDate string) (*models.Snapshot, error)

	List(ctx context.Context, userID string) ([]models.Snapshot, error)
}

// AttributionService decomposes net-worth change over a period.
type AttributionService interface {
	Analyze(ctx context.Context, userID, startDate, endDate string) (*models.AttributionReport, error)
}
