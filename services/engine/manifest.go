package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// EngineVersion identifies the fill semantics. Bump on any change that can
// alter a run's fill or trade sequence.
const EngineVersion = "1.0.0"

// Manifest makes a run reproducible: the same feed plus a config with the
// same hash must yield byte-identical fill and trade sequences.
type Manifest struct {
	RunID         string `json:"run_id"`
	EngineVersion string `json:"engine_version"`
	ConfigHash    string `json:"config_hash"`
	CreatedAt     int64  `json:"created_at"`
}

func NewManifest(runID string, cfg Config) Manifest {
	return Manifest{
		RunID:         runID,
		EngineVersion: EngineVersion,
		ConfigHash:    hashConfig(cfg),
		CreatedAt:     time.Now().UnixMilli(),
	}
}

func hashConfig(cfg Config) string {
	// Hash the serializable option surface; model interfaces contribute
	// their concrete values.
	view := map[string]any{
		"symbol":                  cfg.Symbol,
		"initial_cash":            cfg.InitialCash,
		"process_orders_on_close": cfg.ProcessOrdersOnClose,
		"calc_on_every_tick":      cfg.CalcOnEveryTick,
		"close_entries_rule":      cfg.CloseEntriesRule,
		"margin_long":             cfg.Margin.Long,
		"margin_short":            cfg.Margin.Short,
		"maintenance":             cfg.Margin.Maintenance,
		"fees":                    fmt.Sprintf("%#v", cfg.Fees),
		"slippage":                fmt.Sprintf("%#v", cfg.Slippage),
		"price_tick":              cfg.Filters.PriceTick,
		"qty_step":                cfg.Filters.QtyStep,
	}
	b, _ := json.Marshal(view)
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
