package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/models"
	"github.com/bobmcallan/keel/internal/services/valuation"
)

// fixedMarket serves a constant price table for scenario tests.
type fixedMarket struct {
	prices map[string]float64
}

func (m *fixedMarket) GetPrices(_ context.Context, identifiers []string, _ bool) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, id := range identifiers {
		if p, ok := m.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *fixedMarket) GetRates(_ context.Context, base string, _ bool) (map[string]float64, error) {
	return map[string]float64{base: 1}, nil
}

// TestTradeLifecycle walks a full deposit, buy, revalue, sell cycle and
// checks that selling at the market price moves value between the stock and
// cash lines without changing net worth.
func TestTradeLifecycle(t *testing.T) {
	storage := newMemStorage()
	logger := common.NewSilentLogger()
	svc := NewService(storage, "USD", logger)
	market := &fixedMarket{prices: map[string]float64{"AAPL": 120}}
	valuer := valuation.NewService(market, "ounce", logger)
	ctx := context.Background()

	// Deposit 10000 USD.
	_, err := svc.Apply(ctx, &models.Transaction{
		UserID: "alice", Kind: models.TxIncome, Amount: 10000, Currency: "USD", Account: "checking",
	})
	require.NoError(t, err)

	// Buy 10 AAPL for 1000 total, funded from checking.
	p, err := svc.Apply(ctx, &models.Transaction{
		UserID: "alice", Kind: models.TxBuy, Amount: 1000, Currency: "USD", Account: "checking",
		AssetClass: models.AssetClassStock, AssetIdentifier: "AAPL", AssetQuantity: 10,
	})
	require.NoError(t, err)

	h := p.FindHolding(models.AssetClassStock, "AAPL")
	require.NotNil(t, h)
	assert.InDelta(t, 100.0, h.AverageCost, 1e-9)
	acct := p.FindCash("checking")
	require.NotNil(t, acct)
	assert.InDelta(t, 9000.0, acct.Balance, 1e-9)

	// Market values AAPL at 120: 1200 stock + 9000 cash.
	v, err := valuer.Revalue(ctx, p, false)
	require.NoError(t, err)
	assert.InDelta(t, 10200.0, v.NetWorth, 1e-9)

	// Sell 4 at market: proceeds 480, realized P&L 4 × (120 − 100) = 80.
	tx := &models.Transaction{
		UserID: "alice", Kind: models.TxSell, Amount: 480, Currency: "USD", Account: "checking",
		AssetClass: models.AssetClassStock, AssetIdentifier: "AAPL", AssetQuantity: 4,
	}
	p, err = svc.Apply(ctx, tx)
	require.NoError(t, err)

	require.NotNil(t, tx.RealizedPL)
	assert.InDelta(t, 80.0, *tx.RealizedPL, 1e-9)
	assert.Equal(t, "USD", tx.PLCurrency)

	h = p.FindHolding(models.AssetClassStock, "AAPL")
	require.NotNil(t, h)
	assert.InDelta(t, 6.0, h.Quantity, 1e-9)
	assert.InDelta(t, 100.0, h.AverageCost, 1e-9, "selling never revises average cost")
	acct = p.FindCash("checking")
	require.NotNil(t, acct)
	assert.InDelta(t, 9480.0, acct.Balance, 1e-9)

	// Selling at the market price only moves value between lines.
	v, err = valuer.Revalue(ctx, p, false)
	require.NoError(t, err)
	assert.InDelta(t, 720.0, v.Subtotals.Stocks, 1e-9)
	assert.InDelta(t, 9480.0, v.Subtotals.Cash, 1e-9)
	assert.InDelta(t, 10200.0, v.NetWorth, 1e-9, "net worth is unchanged by an at-market sale")
}
