// Package config loads service configuration from environment
// variables, with a local .env file honored in development.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	// HTTP surfaces
	APIAddr     string `envconfig:"API_ADDR" default:":8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Upstream EOD provider
	ProviderBaseURL string        `envconfig:"PROVIDER_BASE_URL" default:"https://www.quandl.com/api/v3/datasets/WIKI"`
	ProviderAPIKey  string        `envconfig:"PROVIDER_API_KEY"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"30s"`

	// Day-series cache: idle expiry per key and sweep cadence,
	// mirroring node-cache's stdTTL/checkperiod pair.
	CacheTTL   time.Duration `envconfig:"CACHE_TTL" default:"1000s"`
	CacheSweep time.Duration `envconfig:"CACHE_SWEEP" default:"1200s"`

	// Derived-report snapshot cache
	ReportTTL time.Duration `envconfig:"REPORT_TTL" default:"24h"`

	// Ticker symbol table
	TickerDBPath   string `envconfig:"TICKER_DB_PATH" default:"data/tickers.db"`
	TickerSeedPath string `envconfig:"TICKER_SEED_PATH"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment. A missing .env file
// is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
