package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/keel/internal/models"
)

// StorageManager coordinates the durable document stores. The underlying
// store is a plain key→document store with no schema enforcement; all
// read-modify-write cycles are last-write-wins (a documented limitation,
// see models.Portfolio).
type StorageManager interface {
	PortfolioStore() PortfolioStore
	LedgerStore() LedgerStore
	SnapshotStore() SnapshotStore
	Close() error
}

// PortfolioStore persists one live portfolio document per user.
type PortfolioStore interface {
	Get(ctx context.Context, userID string) (*models.Portfolio, error)
	Save(ctx context.Context, portfolio *models.Portfolio) error
	Delete(ctx context.Context, userID string) error
}

// LedgerStore persists the append-only transaction log per user.
type LedgerStore interface {
	Append(ctx context.Context, tx *models.Transaction) error
	List(ctx context.Context, userID string) ([]models.Transaction, error)
	// ListRange returns transactions with from < Timestamp <= to, ascending.
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]models.Transaction, error)
}

// SnapshotStore persists one valuation snapshot per (user, date).
type SnapshotStore interface {
	Get(ctx context.Context, userID, date string) (*models.Snapshot, error)
	Put(ctx context.Context, snapshot *models.Snapshot) error
	// List returns all snapshots for a user, ascending by date.
	List(ctx context.Context, userID string) ([]models.Snapshot, error)
}
