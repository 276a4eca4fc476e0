// Package attribution decomposes the net-worth change between two snapshots
// into market, cash-flow, and FX components plus an exact residual.
//
// The conventions are deliberately simple and consistent rather than
// point-in-time accurate: the market component converts price moves at the
// start snapshot's rates, and cash flows convert at the start snapshot's
// rates too. Changing either would change reported numbers, so they are
// part of the contract, not an implementation detail.
package attribution

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/fx"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// Service implements interfaces.AttributionService.
type Service struct {
	storage   interfaces.StorageManager
	snapshots interfaces.SnapshotService
	logger    *common.Logger
}

// NewService creates an attribution service.
func NewService(storage interfaces.StorageManager, snapshots interfaces.SnapshotService, logger *common.Logger) *Service {
	return &Service{storage: storage, snapshots: snapshots, logger: logger}
}

// Analyze resolves the snapshots closest to startDate and endDate and
// decomposes the net-worth change between them using the transactions in
// (start.Date, end.Date].
func (s *Service) Analyze(ctx context.Context, userID, startDate, endDate string) (*models.AttributionReport, error) {
	start, err := s.snapshots.GetClosestSnapshot(ctx, userID, startDate)
	if err != nil {
		return nil, err
	}
	end, err := s.snapshots.GetClosestSnapshot(ctx, userID, endDate)
	if err != nil {
		return nil, err
	}
	if start == nil {
		return nil, fmt.Errorf("%w: no snapshot on or before %s", models.ErrInsufficientHistory, startDate)
	}
	if end == nil {
		return nil, fmt.Errorf("%w: no snapshot on or before %s", models.ErrInsufficientHistory, endDate)
	}

	from, err := dayEnd(start.Date)
	if err != nil {
		return nil, err
	}
	to, err := dayEnd(end.Date)
	if err != nil {
		return nil, err
	}
	txs, err := s.storage.LedgerStore().ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for %s: %w", userID, err)
	}

	report, err := Decompose(start, end, txs)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user", userID).
		Str("start", report.StartDate).
		Str("end", report.EndDate).
		Float64("total_change", report.TotalChange).
		Float64("residual", report.Residual).
		Msg("Attribution computed")

	return report, nil
}

// dayEnd returns the last instant of the given calendar day, so that the
// transaction window (start.Date, end.Date] can be expressed with exclusive
// lower and inclusive upper timestamp bounds.
func dayEnd(date string) (time.Time, error) {
	day, err := time.Parse(models.SnapshotDateFormat, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid snapshot date %q: %w", date, err)
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// Decompose computes the attribution report from two snapshots and the
// transaction log slice between them. It fails with ErrInsufficientHistory
// when the baseline is missing or not strictly before the end snapshot —
// it never guesses a baseline.
func Decompose(start, end *models.Snapshot, txs []models.Transaction) (*models.AttributionReport, error) {
	if start == nil || end == nil {
		return nil, fmt.Errorf("%w: two snapshots required", models.ErrInsufficientHistory)
	}
	if start.Date >= end.Date {
		return nil, fmt.Errorf("%w: start %s is not before end %s", models.ErrInsufficientHistory, start.Date, end.Date)
	}

	base := start.BaseCurrency
	report := &models.AttributionReport{
		UserID:           start.UserID,
		StartDate:        start.Date,
		EndDate:          end.Date,
		BaseCurrency:     base,
		TotalChange:      end.NetWorth - start.NetWorth,
		TransactionCount: len(txs),
	}

	report.Market = marketComponent(start, end, base)
	report.CashFlow = cashFlowComponent(start, txs, base)
	report.FX = fxComponent(start, end, base)

	// Residual is the exact remainder by construction: the four terms always
	// sum to the total change.
	report.Residual = report.TotalChange - report.Market - report.CashFlow - report.FX

	return report, nil
}

// marketComponent accumulates, for every asset held in both snapshots, the
// price move on the quantity held throughout: min(startQty, endQty) ×
// (endPrice − startPrice), converted at the start snapshot's rates. Shares
// bought or sold mid-period are excluded here; their effect lands in cash
// flow and residual.
func marketComponent(start, end *models.Snapshot, base string) float64 {
	var total float64
	for _, class := range []models.AssetClass{models.AssetClassStock, models.AssetClassCrypto, models.AssetClassGold} {
		for _, sh := range start.Portfolio.HoldingsByClass(class) {
			eh := end.Portfolio.FindHolding(class, sh.Identifier)
			if eh == nil {
				continue
			}
			common := math.Min(sh.Quantity, eh.Quantity)
			native := common * (eh.LastPrice - sh.LastPrice)
			converted, _ := fx.ConvertOrFallback(native, sh.Currency, base, start.Rates)
			total += converted
		}
	}
	return total
}

// cashFlowComponent sums external flows: income and sell proceeds positive,
// expense and buy cost negative, transfers neutral. Every amount converts
// at the rate in effect at the start snapshot — one consistent convention
// instead of per-transaction point-in-time rates.
func cashFlowComponent(start *models.Snapshot, txs []models.Transaction, base string) float64 {
	var total float64
	for _, tx := range txs {
		var signed float64
		switch {
		case tx.Kind.IsCashInflow():
			signed = tx.Amount
		case tx.Kind.IsCashOutflow():
			signed = -tx.Amount
		default:
			continue
		}
		converted, _ := fx.ConvertOrFallback(signed, tx.Currency, base, start.Rates)
		total += converted
	}
	return total
}

// fxComponent measures pure currency drift on the start snapshot's cash
// balances: balance × (1/endRate − 1/startRate) for every non-base cash
// account. Balance changes during the period are already counted under cash
// flow. Accounts whose rate is missing from either table are skipped; their
// drift lands in the residual.
func fxComponent(start, end *models.Snapshot, base string) float64 {
	var total float64
	for _, acct := range start.Portfolio.CashAccounts {
		if acct.Currency == base {
			continue
		}
		startRate, okS := start.Rates[acct.Currency]
		endRate, okE := end.Rates[acct.Currency]
		if !okS || !okE || startRate == 0 || endRate == 0 {
			continue
		}
		total += acct.Balance * (1/endRate - 1/startRate)
	}
	return total
}
