package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokersim/services/engine"
)

const sample = `
symbol: BTCUSDT
timeframe: 1m
engine:
  initial_cash: 50000
  process_orders_on_close: true
  close_entries_rule: lifo
  margin_long: 20
  margin_short: 25
  fee_bps: 7.5
  slippage_bps: 2
  price_tick: 0.5
  qty_step: 0.001
clickhouse:
  addr: localhost:9000
  http_addr: http://localhost:8123
  database: backtest
  table: klines
  user: reader
logging:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, "1m", cfg.Timeframe)
	assert.Equal(t, 50_000.0, cfg.Engine.InitialCash)
	assert.True(t, cfg.Engine.ProcessOrdersOnClose)
	assert.Equal(t, "lifo", cfg.Engine.CloseEntriesRule)
	assert.Equal(t, "localhost:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEngineConfigTranslation(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	ec := cfg.EngineConfig()
	assert.Equal(t, "BTCUSDT", ec.Symbol)
	assert.Equal(t, engine.CloseLIFO, ec.CloseEntriesRule)
	assert.InDelta(t, 0.20, ec.Margin.Long, 1e-9)
	assert.InDelta(t, 0.25, ec.Margin.Short, 1e-9)
	assert.Equal(t, engine.BpsFee{Bps: 7.5}, ec.Fees)
	assert.Equal(t, engine.BpsSlippage{Bps: 2}, ec.Slippage)
	assert.Equal(t, 0.5, ec.Filters.PriceTick)
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Setenv("CH_ADDR", "ch.internal:9000")
	t.Setenv("CH_PASSWORD", "secret")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "ch.internal:9000", cfg.ClickHouse.Addr)
	assert.Equal(t, "secret", cfg.ClickHouse.Password)
	assert.Equal(t, "reader", cfg.ClickHouse.User)
}

func TestLoadRejectsBadCloseRule(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  close_entries_rule: newest\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close_entries_rule")
}

func TestLoadRejectsBadMargin(t *testing.T) {
	_, err := Load(writeConfig(t, "engine:\n  margin_long: 150\n"))
	require.Error(t, err)
}
