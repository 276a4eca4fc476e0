package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Keel
type Config struct {
	Environment  string        `toml:"environment"`
	BaseCurrency string        `toml:"base_currency"` // valuation/reporting currency, ISO 4217
	Server       ServerConfig  `toml:"server"`
	Storage      StorageConfig `toml:"storage"`
	Clients      ClientsConfig `toml:"clients"`
	Market       MarketConfig  `toml:"market"`
	Logging      LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the on-disk location of the user document store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds market-data client configurations
type ClientsConfig struct {
	AlphaVantage AlphaVantageConfig `toml:"alphavantage"`
	Frankfurter  FrankfurterConfig  `toml:"frankfurter"`
}

// AlphaVantageConfig holds price feed API configuration
type AlphaVantageConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *AlphaVantageConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// FrankfurterConfig holds FX feed API configuration
type FrankfurterConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *FrankfurterConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// MarketConfig holds market-data caching configuration.
type MarketConfig struct {
	CacheTTL      string `toml:"cache_ttl"`       // how long prices/rates stay fresh
	GoldPriceUnit string `toml:"gold_price_unit"` // "ounce" (default) or "gram"
}

// GetCacheTTL parses and returns the cache TTL duration.
func (c *MarketConfig) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		BaseCurrency: "USD",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/user",
		},
		Clients: ClientsConfig{
			AlphaVantage: AlphaVantageConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 5,
				Timeout:   "30s",
			},
			Frankfurter: FrankfurterConfig{
				BaseURL:   "https://api.frankfurter.dev/v1",
				RateLimit: 5,
				Timeout:   "30s",
			},
		},
		Market: MarketConfig{
			CacheTTL:      "30m",
			GoldPriceUnit: "ounce",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	validateBaseCurrency(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("KEEL_ENV"); env != "" {
		config.Environment = env
	}
	if host := os.Getenv("KEEL_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("KEEL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if level := os.Getenv("KEEL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if path := os.Getenv("KEEL_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}
	if bc := os.Getenv("KEEL_BASE_CURRENCY"); bc != "" {
		config.BaseCurrency = strings.ToUpper(bc)
	}
	if key := os.Getenv("KEEL_ALPHAVANTAGE_API_KEY"); key != "" {
		config.Clients.AlphaVantage.APIKey = key
	}
	if ttl := os.Getenv("KEEL_MARKET_CACHE_TTL"); ttl != "" {
		config.Market.CacheTTL = ttl
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// validateBaseCurrency normalizes the base currency to an upper-case ISO code,
// defaulting to USD when unset.
func validateBaseCurrency(config *Config) {
	bc := strings.ToUpper(strings.TrimSpace(config.BaseCurrency))
	if len(bc) != 3 {
		bc = "USD"
	}
	config.BaseCurrency = bc
}
