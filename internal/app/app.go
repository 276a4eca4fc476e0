// Package app wires configuration, storage, clients, and services into a
// single App shared by the server binary and tests.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/keel/internal/clients/alphavantage"
	"github.com/bobmcallan/keel/internal/clients/frankfurter"
	"github.com/bobmcallan/keel/internal/common"
	"github.com/bobmcallan/keel/internal/interfaces"
	"github.com/bobmcallan/keel/internal/services/attribution"
	"github.com/bobmcallan/keel/internal/services/ledger"
	"github.com/bobmcallan/keel/internal/services/marketdata"
	"github.com/bobmcallan/keel/internal/services/snapshot"
	"github.com/bobmcallan/keel/internal/services/valuation"
	"github.com/bobmcallan/keel/internal/storage"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config             *common.Config
	Logger             *common.Logger
	Storage            interfaces.StorageManager
	MarketData         interfaces.MarketDataProvider
	LedgerService      interfaces.LedgerService
	ValuationService   interfaces.ValuationService
	SnapshotService    interfaces.SnapshotService
	AttributionService interfaces.AttributionService
	StartupTime        time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services. configPath may be
// empty, in which case KEEL_CONFIG, the binary directory, and the
// development default are tried in order.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("KEEL_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "keel.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/keel.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Clients.AlphaVantage.APIKey == "" {
		logger.Warn().Msg("Alpha Vantage API key not configured - valuations will carry warnings")
	}

	priceFeed := alphavantage.NewClient(config.Clients.AlphaVantage.APIKey,
		alphavantage.WithBaseURL(config.Clients.AlphaVantage.BaseURL),
		alphavantage.WithLogger(logger),
		alphavantage.WithRateLimit(config.Clients.AlphaVantage.RateLimit),
		alphavantage.WithTimeout(config.Clients.AlphaVantage.GetTimeout()),
	)

	fxFeed := frankfurter.NewClient(
		frankfurter.WithBaseURL(config.Clients.Frankfurter.BaseURL),
		frankfurter.WithLogger(logger),
		frankfurter.WithRateLimit(config.Clients.Frankfurter.RateLimit),
		frankfurter.WithTimeout(config.Clients.Frankfurter.GetTimeout()),
	)

	marketData := marketdata.NewService(priceFeed, fxFeed, config.Market.GetCacheTTL(), logger)
	ledgerService := ledger.NewService(storageManager, config.BaseCurrency, logger)
	valuationService := valuation.NewService(marketData, config.Market.GoldPriceUnit, logger)
	snapshotService := snapshot.NewService(storageManager, logger)
	attributionService := attribution.NewService(storageManager, snapshotService, logger)

	a := &App{
		Config:             config,
		Logger:             logger,
		Storage:            storageManager,
		MarketData:         marketData,
		LedgerService:      ledgerService,
		ValuationService:   valuationService,
		SnapshotService:    snapshotService,
		AttributionService: attributionService,
		StartupTime:        startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
