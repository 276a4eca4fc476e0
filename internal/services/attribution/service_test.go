package attribution

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/services/snapshot"
)

// memStorage holds snapshots and a ledger in memory.
type memStorage struct {
	snaps map[string]map[string]*models.Snapshot
	txs   map[string][]models.Transaction
}

func newMemStorage() *memStorage {
	return &memStorage{
		snaps: make(map[string]map[string]*models.Snapshot),
		txs:   make(map[string][]models.Transaction),
	}
}

func (m *memStorage) PortfolioStore() interfaces.PortfolioStore { return nil }
func (m *memStorage) LedgerStore() interfaces.LedgerStore       { return memLedger{m} }
func (m *memStorage) SnapshotStore() interfaces.SnapshotStore   { return m }
func (m *memStorage) Close() error                              { return nil }

// memLedger wraps memStorage so the ledger's List (transactions) does not
// collide with the snapshot store's List (snapshots) on the same receiver.
type memLedger struct {
	*memStorage
}

func (l memLedger) List(_ context.Context, userID string) ([]models.Transaction, error) {
	return append([]models.Transaction(nil), l.txs[userID]...), nil
}

func (m *memStorage) Get(_ context.Context, userID, date string) (*models.Snapshot, error) {
	s, ok := m.snaps[userID][date]
	if !ok {
		return nil, models.ErrNotFound
	}
	return s, nil
}

func (m *memStorage) Put(_ context.Context, s *models.Snapshot) error {
	if m.snaps[s.UserID] == nil {
		m.snaps[s.UserID] = make(map[string]*models.Snapshot)
	}
	m.snaps[s.UserID][s.Date] = s
	return nil
}

func (m *memStorage) List(_ context.Context, userID string) ([]models.Snapshot, error) {
	var out []models.Snapshot
	for _, s := range m.snaps[userID] {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memStorage) Append(_ context.Context, tx *models.Transaction) error {
	m.txs[tx.UserID] = append(m.txs[tx.UserID], *tx)
	return nil
}

func (m *memStorage) ListRange(_ context.Context, userID string, from, to time.Time) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, tx := range m.txs[userID] {
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

func snap(date string, netWorth float64, portfolio *models.Portfolio, rates map[string]float64) *models.Snapshot {
	if rates == nil {
		rates = map[string]float64{"USD": 1}
	}
	return &models.Snapshot{
		UserID:       "alice",
		Date:         date,
		BaseCurrency: "USD",
		Rates:        rates,
		NetWorth:     netWorth,
		Portfolio:    portfolio,
	}
}

func stockPortfolio(qty, lastPrice float64) *models.Portfolio {
	p := models.NewPortfolio("alice", "USD")
	p.Stocks = []models.Holding{{
		Identifier: "AAPL", Quantity: qty, AverageCost: 100, Currency: "USD", LastPrice: lastPrice,
	}}
	return p
}

func TestDecompose_MarketComponent(t *testing.T) {
	// 10 shares held throughout, price 100 → 120 ⇒ market = 200.
	start := snap("2024-03-01", 1000, stockPortfolio(10, 100), nil)
	end := snap("2024-03-31", 1200, stockPortfolio(10, 120), nil)

	report, err := Decompose(start, end, nil)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, report.TotalChange, 1e-9)
	assert.InDelta(t, 200.0, report.Market, 1e-9)
	assert.InDelta(t, 0.0, report.CashFlow, 1e-9)
	assert.InDelta(t, 0.0, report.FX, 1e-9)
	assert.InDelta(t, 0.0, report.Residual, 1e-9)
}

func TestDecompose_CommonQuantityExcludesMidPeriodShares(t *testing.T) {
	// Started with 10, ended with 25 (15 bought mid-period): only the 10
	// held throughout contribute to the market component.
	start := snap("2024-03-01", 1000, stockPortfolio(10, 100), nil)
	end := snap("2024-03-31", 3000, stockPortfolio(25, 120), nil)

	report, err := Decompose(start, end, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10*(120-100), report.Market, 1e-9)
}

func TestDecompose_MarketConvertsAtStartRate(t *testing.T) {
	p := models.NewPortfolio("alice", "USD")
	p.Stocks = []models.Holding{{Identifier: "BHP", Quantity: 100, Currency: "AUD", LastPrice: 40}}
	pEnd := models.NewPortfolio("alice", "USD")
	pEnd.Stocks = []models.Holding{{Identifier: "BHP", Quantity: 100, Currency: "AUD", LastPrice: 44}}

	// Start rate 1.60 AUD/USD, end rate 1.50 — the move converts at 1.60.
	start := snap("2024-03-01", 0, p, map[string]float64{"USD": 1, "AUD": 1.60})
	end := snap("2024-03-31", 0, pEnd, map[string]float64{"USD": 1, "AUD": 1.50})

	report, err := Decompose(start, end, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100*4/1.60, report.Market, 1e-9)
}

func TestDecompose_CashFlowComponent(t *testing.T) {
	start := snap("2024-03-01", 5000, models.NewPortfolio("alice", "USD"), nil)
	end := snap("2024-03-31", 6000, models.NewPortfolio("alice", "USD"), nil)

	ts := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		{Kind: models.TxIncome, Amount: 2000, Currency: "USD", Timestamp: ts},
		{Kind: models.TxExpense, Amount: 700, Currency: "USD", Timestamp: ts},
		{Kind: models.TxBuy, Amount: 500, Currency: "USD", Timestamp: ts},
		{Kind: models.TxSell, Amount: 300, Currency: "USD", Timestamp: ts},
		{Kind: models.TxTransfer, Amount: 9999, Currency: "USD", Timestamp: ts}, // internal, neutral
	}

	report, err := Decompose(start, end, txs)
	require.NoError(t, err)
	assert.InDelta(t, 2000-700-500+300, report.CashFlow, 1e-9)
}

func TestDecompose_FXComponent(t *testing.T) {
	p := models.NewPortfolio("alice", "USD")
	p.CashAccounts = []models.CashAccount{
		{Name: "eur", Balance: 920, Currency: "EUR"},
		{Name: "usd", Balance: 1000, Currency: "USD"}, // base, no drift
	}
	pEnd := models.NewPortfolio("alice", "USD")
	pEnd.CashAccounts = append([]models.CashAccount(nil), p.CashAccounts...)

	start := snap("2024-03-01", 0, p, map[string]float64{"USD": 1, "EUR": 0.92})
	end := snap("2024-03-31", 0, pEnd, map[string]float64{"USD": 1, "EUR": 0.95})

	report, err := Decompose(start, end, nil)
	require.NoError(t, err)
	// 920 × (1/0.95 − 1/0.92): the euro weakened, the drift is negative.
	want := 920 * (1/0.95 - 1/0.92)
	assert.InDelta(t, want, report.FX, 1e-9)
	assert.Less(t, report.FX, 0.0)
}

func TestDecompose_ResidualClosesExactly(t *testing.T) {
	// Messy period: trades, flows, price moves, FX moves. The four terms
	// must still sum to the total change exactly, by construction.
	p := models.NewPortfolio("alice", "USD")
	p.Stocks = []models.Holding{{Identifier: "AAPL", Quantity: 10, Currency: "USD", LastPrice: 100}}
	p.CashAccounts = []models.CashAccount{{Name: "eur", Balance: 500, Currency: "EUR"}}
	pEnd := models.NewPortfolio("alice", "USD")
	pEnd.Stocks = []models.Holding{{Identifier: "AAPL", Quantity: 6, Currency: "USD", LastPrice: 130}}
	pEnd.CashAccounts = []models.CashAccount{{Name: "eur", Balance: 800, Currency: "EUR"}}

	start := snap("2024-03-01", 1543.48, p, map[string]float64{"USD": 1, "EUR": 0.92})
	end := snap("2024-03-31", 1622.11, pEnd, map[string]float64{"USD": 1, "EUR": 0.97})

	ts := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		{Kind: models.TxSell, Amount: 520, Currency: "USD", Timestamp: ts},
		{Kind: models.TxExpense, Amount: 200, Currency: "EUR", Timestamp: ts},
	}

	report, err := Decompose(start, end, txs)
	require.NoError(t, err)
	sum := report.Market + report.CashFlow + report.FX + report.Residual
	assert.InDelta(t, report.TotalChange, sum, 1e-9, "components plus residual must equal total change")
}

func TestDecompose_InsufficientHistory(t *testing.T) {
	end := snap("2024-03-31", 1000, models.NewPortfolio("alice", "USD"), nil)

	_, err := Decompose(nil, end, nil)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)

	// Start not strictly before end.
	_, err = Decompose(end, end, nil)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	storage := newMemStorage()
	logger := common.NewSilentLogger()
	snapSvc := snapshot.NewService(storage, logger)
	svc := NewService(storage, snapSvc, logger)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, snap("2024-03-01", 1000, stockPortfolio(10, 100), nil)))
	require.NoError(t, storage.Put(ctx, snap("2024-03-29", 1200, stockPortfolio(10, 120), nil)))

	// On the start day itself: excluded from the window. Mid-period: included.
	require.NoError(t, storage.Append(ctx, &models.Transaction{
		UserID: "alice", Kind: models.TxIncome, Amount: 111, Currency: "USD",
		Timestamp: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, storage.Append(ctx, &models.Transaction{
		UserID: "alice", Kind: models.TxIncome, Amount: 50, Currency: "USD",
		Timestamp: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
	}))

	// Requesting a weekend end date resolves to the closest earlier snapshot.
	report, err := svc.Analyze(ctx, "alice", "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", report.StartDate)
	assert.Equal(t, "2024-03-29", report.EndDate)
	assert.InDelta(t, 200.0, report.TotalChange, 1e-9)
	assert.InDelta(t, 50.0, report.CashFlow, 1e-9, "start-day transactions are outside the window")
	assert.Equal(t, 1, report.TransactionCount)
}

func TestAnalyze_NoHistory(t *testing.T) {
	storage := newMemStorage()
	logger := common.NewSilentLogger()
	svc := NewService(storage, snapshot.NewService(storage, logger), logger)

	_, err := svc.Analyze(context.Background(), "alice", "2024-03-01", "2024-03-31")
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestAnalyze_NamesMissingBound(t *testing.T) {
	storage := newMemStorage()
	logger := common.NewSilentLogger()
	svc := NewService(storage, snapshot.NewService(storage, logger), logger)
	ctx := context.Background()

	require.NoError(t, storage.Put(ctx, snap("2024-03-10", 1000, stockPortfolio(10, 100), nil)))

	// Start resolves to 2024-03-10; only the end bound lacks history.
	_, err := svc.Analyze(ctx, "alice", "2024-03-15", "2024-03-05")
	require.ErrorIs(t, err, models.ErrInsufficientHistory)
	assert.Contains(t, err.Error(), "2024-03-05", "the error must name the bound that lacked history")
}
