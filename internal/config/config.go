// Package config loads the exchange's bootstrap configuration: which
// symbols to create at startup, the initial market state, the log level,
// and the metrics listener address. None of this configures the in-process
// trading protocol itself — there is nothing to configure there, per the
// exchange's no-persistence, no-network-transport design.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level bootstrap configuration. Maps directly to the
// YAML file structure.
type Config struct {
	Symbols []string      `mapstructure:"symbols"`
	Market  MarketConfig  `mapstructure:"market"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MarketConfig controls the market state the exchange boots into.
type MarketConfig struct {
	// InitialState is the state SetMarketState is driven to immediately
	// after every symbol in Symbols has been created. Empty means the
	// exchange stays CLOSED until an admin call drives it.
	InitialState string `mapstructure:"initial_state"`
}

// LoggingConfig controls the structured logger every component shares.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus metrics listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads config from a YAML file, with EXCH_* environment variable
// overrides for scalar fields (e.g. EXCH_MARKET_INITIAL_STATE,
// EXCH_LOGGING_LEVEL, EXCH_METRICS_ADDR).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EXCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("market.initial_state", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if state := os.Getenv("EXCH_MARKET_INITIAL_STATE"); state != "" {
		cfg.Market.InitialState = state
	}

	return &cfg, nil
}

// Validate checks the fields Load cannot validate itself (symbol syntax,
// state spelling); it does not open anything.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Symbols))
	for _, sym := range c.Symbols {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s == "" {
			return fmt.Errorf("config: symbols entries must not be empty")
		}
		if seen[s] {
			return fmt.Errorf("config: duplicate symbol %q", s)
		}
		seen[s] = true
	}
	switch strings.ToUpper(c.Market.InitialState) {
	case "", "CLOSED", "PREOPEN", "OPEN":
	default:
		return fmt.Errorf("config: market.initial_state must be one of CLOSED, PREOPEN, OPEN, got %q", c.Market.InitialState)
	}
	return nil
}
