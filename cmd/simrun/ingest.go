package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ch "brokersim/services/clickhouse"
	"brokersim/services/config"
	"brokersim/services/engine"
	"brokersim/services/logging"
)

// ingest loads a bar CSV into the ClickHouse bars table, creating the schema
// on first use.
func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a bar CSV into ClickHouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer log.Sync()

			if csvPath == "" {
				return fmt.Errorf("ingest requires --csv")
			}
			bars, err := engine.LoadCSV(csvPath, cfg.Symbol, cfg.Timeframe)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				return fmt.Errorf("no bars in %s", csvPath)
			}

			ctx := cmd.Context()
			client, err := ch.NewClient(ctx, chOptions(cfg))
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.EnsureSchema(ctx); err != nil {
				return err
			}
			if err := client.InsertBars(ctx, cfg.Symbol, cfg.Timeframe, bars); err != nil {
				return err
			}
			log.Info("bars ingested",
				zap.String("symbol", cfg.Symbol),
				zap.String("timeframe", cfg.Timeframe),
				zap.Int("count", len(bars)))
			return nil
		},
	}
	return cmd
}
