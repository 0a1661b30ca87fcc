package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_AppliesLatencyDefaults(t *testing.T) {
	path := writeTempConfig(t, `
feed:
  snapshot_path: snapshots.csv
  trade_path: trades.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 100, cfg.Latency.PostLatencyMS)
	assert.EqualValues(t, 100, cfg.Latency.CancelLatencyMS)
	assert.EqualValues(t, 100, cfg.Latency.CallFrequencyMS)
	assert.Equal(t, "snapshots.csv", cfg.Feed.SnapshotPath)
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeTempConfig(t, `
fees:
  limit_order_fee: 50
  market_order_fee: 75
latency:
  post_latency_ms: 10
feed:
  snapshot_path: s.csv
  trade_path: t.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 50, cfg.Fees.LimitOrderFee)
	assert.EqualValues(t, 75, cfg.Fees.MarketOrderFee)
	assert.EqualValues(t, 10, cfg.Latency.PostLatencyMS)
	assert.EqualValues(t, 100, cfg.Latency.CancelLatencyMS)
}

func TestValidate_RequiresFeedPaths(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.Feed.SnapshotPath = "s.csv"
	assert.Error(t, cfg.Validate())

	cfg.Feed.TradePath = "t.csv"
	assert.NoError(t, cfg.Validate())
}

func TestKernelConfig_TranslatesFields(t *testing.T) {
	cfg := &Config{
		Fees:    FeesConfig{LimitOrderFee: 10, MarketOrderFee: 20},
		Latency: LatencyConfig{PostLatencyMS: 1, CancelLatencyMS: 2, CallFrequencyMS: 3},
	}
	kc := cfg.KernelConfig()
	assert.EqualValues(t, 10, kc.LimitOrderFee)
	assert.EqualValues(t, 20, kc.MarketOrderFee)
	assert.EqualValues(t, 1, kc.PostLatencyMS)
	assert.EqualValues(t, 2, kc.CancelLatencyMS)
	assert.EqualValues(t, 3, kc.CallFrequencyMS)
}
