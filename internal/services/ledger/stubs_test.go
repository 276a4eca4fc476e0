package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// memStorage is an in-memory StorageManager for tests.
type memStorage struct {
	mu         sync.Mutex
	portfolios map[string]*models.Portfolio
	ledgers    map[string][]models.Transaction
	snapshots  map[string]map[string]*models.Snapshot // userID → date → snapshot
}

func newMemStorage() *memStorage {
	return &memStorage{
		portfolios: make(map[string]*models.Portfolio),
		ledgers:    make(map[string][]models.Transaction),
		snapshots:  make(map[string]map[string]*models.Snapshot),
	}
}

func (m *memStorage) PortfolioStore() interfaces.PortfolioStore { return (*memPortfolioStore)(m) }
func (m *memStorage) LedgerStore() interfaces.LedgerStore       { return (*memLedgerStore)(m) }
func (m *memStorage) SnapshotStore() interfaces.SnapshotStore   { return (*memSnapshotStore)(m) }
func (m *memStorage) Close() error                              { return nil }

type memPortfolioStore memStorage

func (m *memPortfolioStore) Get(_ context.Context, userID string) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.portfolios[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *memPortfolioStore) Save(_ context.Context, p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolios[p.UserID] = p.Clone()
	return nil
}

func (m *memPortfolioStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.portfolios, userID)
	return nil
}

type memLedgerStore memStorage

func (m *memLedgerStore) Append(_ context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgers[tx.UserID] = append(m.ledgers[tx.UserID], *tx)
	return nil
}

func (m *memLedgerStore) List(_ context.Context, userID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := append([]models.Transaction(nil), m.ledgers[userID]...)
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp.Before(txs[j].Timestamp) })
	return txs, nil
}

func (m *memLedgerStore) ListRange(_ context.Context, userID string, from, to time.Time) ([]models.Transaction, error) {
	all, _ := m.List(nil, userID)
	var out []models.Transaction
	for _, tx := range all {
		if !from.IsZero() && !tx.Timestamp.After(from) {
			continue
		}
		if !to.IsZero() && tx.Timestamp.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

type memSnapshotStore memStorage

func (m *memSnapshotStore) Get(_ context.Context, userID, date string) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[userID][date]
	if !ok {
		return nil, models.ErrNotFound
	}
	return snap, nil
}

func (m *memSnapshotStore) Put(_ context.Context, snapshot *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshots[snapshot.UserID] == nil {
		m.snapshots[snapshot.UserID] = make(map[string]*models.Snapshot)
	}
	m.snapshots[snapshot.UserID][snapshot.Date] = snapshot
	return nil
}

func (m *memSnapshotStore) List(_ context.Context, userID string) ([]models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Snapshot
	for _, s := range m.snapshots[userID] {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
