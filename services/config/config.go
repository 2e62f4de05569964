package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"brokersim/services/engine"
)

// Config is the YAML-file shape. Connection credentials may be overridden
// from the environment so files can be committed without secrets.
type Config struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`

	Engine struct {
		InitialCash          float64 `yaml:"initial_cash"`
		ProcessOrdersOnClose bool    `yaml:"process_orders_on_close"`
		CalcOnEveryTick      bool    `yaml:"calc_on_every_tick"`
		CloseEntriesRule     string  `yaml:"close_entries_rule"` // fifo | lifo
		MarginLong           float64 `yaml:"margin_long"`        // percent of notional
		MarginShort          float64 `yaml:"margin_short"`
		Maintenance          float64 `yaml:"maintenance"`
		FeeBps               float64 `yaml:"fee_bps"`
		SlippageBps          float64 `yaml:"slippage_bps"`
		PriceTick            float64 `yaml:"price_tick"`
		QtyStep              float64 `yaml:"qty_step"`
	} `yaml:"engine"`

	ClickHouse struct {
		Addr     string `yaml:"addr"`      // native protocol host:port
		HTTPAddr string `yaml:"http_addr"` // HTTP interface base URL, used for batch inserts
		Database string `yaml:"database"`
		Table    string `yaml:"table"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"clickhouse"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("CH_ADDR")); v != "" {
		c.ClickHouse.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_USER")); v != "" {
		c.ClickHouse.User = v
	}
	if v := strings.TrimSpace(os.Getenv("CH_PASSWORD")); v != "" {
		c.ClickHouse.Password = v
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Engine.CloseEntriesRule) {
	case "", "fifo", "lifo":
	default:
		return fmt.Errorf("close_entries_rule must be fifo or lifo, got %q", c.Engine.CloseEntriesRule)
	}
	if c.Engine.MarginLong < 0 || c.Engine.MarginLong > 100 ||
		c.Engine.MarginShort < 0 || c.Engine.MarginShort > 100 {
		return fmt.Errorf("margin percentages must be within [0,100]")
	}
	return nil
}

// EngineConfig translates the file shape into the engine's option surface.
func (c *Config) EngineConfig() engine.Config {
	ec := engine.Config{
		Symbol:               c.Symbol,
		InitialCash:          c.Engine.InitialCash,
		ProcessOrdersOnClose: c.Engine.ProcessOrdersOnClose,
		CalcOnEveryTick:      c.Engine.CalcOnEveryTick,
		Margin: engine.MarginConfig{
			Long:        c.Engine.MarginLong / 100,
			Short:       c.Engine.MarginShort / 100,
			Maintenance: c.Engine.Maintenance / 100,
		},
		Filters: engine.SymbolFilters{PriceTick: c.Engine.PriceTick, QtyStep: c.Engine.QtyStep},
	}
	if strings.EqualFold(c.Engine.CloseEntriesRule, "lifo") {
		ec.CloseEntriesRule = engine.CloseLIFO
	}
	if c.Engine.FeeBps > 0 {
		ec.Fees = engine.BpsFee{Bps: c.Engine.FeeBps}
	}
	if c.Engine.SlippageBps > 0 {
		ec.Slippage = engine.BpsSlippage{Bps: c.Engine.SlippageBps}
	}
	return ec
}
