// Package config loads backtest run configuration from a YAML file with
// LEDGERBOOK_-prefixed environment variable overrides, grounded on
// 0xtitan6-polymarket-mm's internal/config.Load.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"ledgerbook/internal/kernel"
)

// Config is the top-level run configuration, maps directly onto the YAML
// file structure.
type Config struct {
	Fees    FeesConfig    `mapstructure:"fees"`
	Latency LatencyConfig `mapstructure:"latency"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FeesConfig holds the two fee rates, expressed in units of
// kernel.FeeBase (1/10,000ths).
type FeesConfig struct {
	LimitOrderFee  uint64 `mapstructure:"limit_order_fee"`
	MarketOrderFee uint64 `mapstructure:"market_order_fee"`
}

// LatencyConfig holds the three simulated-delay knobs, in milliseconds.
type LatencyConfig struct {
	PostLatencyMS   uint64 `mapstructure:"post_latency_ms"`
	CancelLatencyMS uint64 `mapstructure:"cancel_latency_ms"`
	CallFrequencyMS uint64 `mapstructure:"call_frequency_ms"`
}

// FeedConfig points at the two CSV tapes a run replays.
type FeedConfig struct {
	SnapshotPath string `mapstructure:"snapshot_path"`
	TradePath    string `mapstructure:"trade_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file at path, with LEDGERBOOK_-prefixed
// env vars (e.g. LEDGERBOOK_FEES_LIMIT_ORDER_FEE) taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LEDGERBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("latency.post_latency_ms", 100)
	v.SetDefault("latency.cancel_latency_ms", 100)
	v.SetDefault("latency.call_frequency_ms", 100)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.Feed.SnapshotPath == "" {
		return fmt.Errorf("feed.snapshot_path is required")
	}
	if c.Feed.TradePath == "" {
		return fmt.Errorf("feed.trade_path is required")
	}
	return nil
}

// KernelConfig translates the loaded config into a kernel.Config.
func (c *Config) KernelConfig() kernel.Config {
	return kernel.Config{
		LimitOrderFee:   c.Fees.LimitOrderFee,
		MarketOrderFee:  c.Fees.MarketOrderFee,
		PostLatencyMS:   c.Latency.PostLatencyMS,
		CancelLatencyMS: c.Latency.CancelLatencyMS,
		CallFrequencyMS: c.Latency.CallFrequencyMS,
	}
}
