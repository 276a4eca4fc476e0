// Package snapshot materializes one valuation record per calendar day per
// user. A day's snapshot is a static historical fact once taken: later
// changes to the live portfolio are captured by the next day's snapshot,
// never by rewriting an existing one.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/models"
)

// Service implements interfaces.SnapshotService.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a snapshot service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// EnsureSnapshot persists a snapshot for the valuation's calendar day if
// none exists yet, and leaves an existing one untouched. Idempotent per
// (user, date): concurrent callers race benignly because valuation is
// deterministic given the same portfolio and rates, so last-write-wins
// writers persist identical documents.
func (s *Service) EnsureSnapshot(ctx context.Context, portfolio *models.Portfolio, valuation *models.Valuation) (*models.Snapshot, bool, error) {
	date := valuation.AsOf.Format(models.SnapshotDateFormat)

	existing, err := s.storage.SnapshotStore().Get(ctx, portfolio.UserID, date)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check snapshot %s/%s: %w", portfolio.UserID, date, err)
	}

	snap := build(portfolio, valuation, date)
	if err := s.storage.SnapshotStore().Put(ctx, snap); err != nil {
		return nil, false, fmt.Errorf("failed to write snapshot %s/%s: %w", portfolio.UserID, date, err)
	}

	s.logger.Info().
		Str("user", portfolio.UserID).
		Str("date", date).
		Float64("net_worth", snap.NetWorth).
		Msg("Snapshot created")

	return snap, true, nil
}

// build assembles an immutable snapshot: a deep copy of the portfolio with
// each holding stamped with the price this valuation used, plus the full
// rate table and aggregates.
func build(portfolio *models.Portfolio, valuation *models.Valuation, date string) *models.Snapshot {
	cp := portfolio.Clone()

	priceByLine := make(map[models.AssetClass]map[string]float64)
	for _, line := range valuation.Lines {
		if priceByLine[line.Class] == nil {
			priceByLine[line.Class] = make(map[string]float64)
		}
		priceByLine[line.Class][line.Identifier] = line.Price
	}
	stamp := func(class models.AssetClass, holdings []models.Holding) {
		for i := range holdings {
			if p, ok := priceByLine[class][holdings[i].Identifier]; ok {
				holdings[i].LastPrice = p
			}
		}
	}
	stamp(models.AssetClassStock, cp.Stocks)
	stamp(models.AssetClassCrypto, cp.Crypto)
	stamp(models.AssetClassGold, cp.Gold)

	return &models.Snapshot{
		UserID:           portfolio.UserID,
		Date:             date,
		BaseCurrency:     valuation.BaseCurrency,
		Rates:            valuation.Rates,
		TotalAssets:      valuation.TotalAssets,
		TotalLiabilities: valuation.TotalLiabilities,
		NetWorth:         valuation.NetWorth,
		Subtotals:        valuation.Subtotals,
		Portfolio:        cp,
		CreatedAt:        time.Now(),
	}
}

// GetClosestSnapshot returns the most recent snapshot on or before
// targetDate, or nil if the user's history starts after that date. Used to
// reconstruct "as of" valuations across non-trading days and gaps.
func (s *Service) GetClosestSnapshot(ctx context.Context, userID, targetDate string) (*models.Snapshot, error) {
	if _, err := time.Parse(models.SnapshotDateFormat, targetDate); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", targetDate, err)
	}

	snaps, err := s.storage.SnapshotStore().List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for %s: %w", userID, err)
	}

	// List is ascending by date; walk backwards to the first on-or-before.
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Date <= targetDate {
			snap := snaps[i]
			return &snap, nil
		}
	}
	return nil, nil
}

// List returns all snapshots for a user, ascending by date.
func (s *Service) List(ctx context.Context, userID string) ([]models.Snapshot, error) {
	return s.storage.SnapshotStore().List(ctx, userID)
}
