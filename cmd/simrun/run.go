package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	ch "brokersim/services/clickhouse"
	"brokersim/services/config"
	"brokersim/services/engine"
	"brokersim/services/logging"
	"brokersim/strategies"
)

func newRunCmd() *cobra.Command {
	var (
		fast, slow int
		qty        float64
		fromStr    string
		toStr      string
		sink       bool
		magnify    int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay bars against the SMA-cross strategy and print the result",
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

			ctx := cmd.Context()
			bars, err := loadBars(ctx, cfg, fromStr, toStr, log)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				return fmt.Errorf("no bars for %s %s", cfg.Symbol, cfg.Timeframe)
			}
			if magnify > 1 {
				// Trade the coarse series, fill on the fine one.
				bars = engine.Resample(bars, magnify)
			}

			strat := strategies.NewSMACross(fast, slow, qty)
			res := engine.Run(ctx, engine.NewSliceFeed(bars), strat, cfg.EngineConfig(), log)
			printResult(res)

			if sink {
				if err := writeTrades(cfg, res); err != nil {
					return err
				}
				log.Info("trades written to clickhouse", zap.Int("count", len(res.Trades)))
			}
			if res.Fault != nil {
				return fmt.Errorf("run halted: %w", res.Fault)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&fast, "fast", 10, "fast moving-average period")
	cmd.Flags().IntVar(&slow, "slow", 30, "slow moving-average period")
	cmd.Flags().Float64Var(&qty, "qty", 1, "order quantity")
	cmd.Flags().StringVar(&fromStr, "from", "", "window start (RFC3339), ClickHouse source only")
	cmd.Flags().StringVar(&toStr, "to", "", "window end (RFC3339), ClickHouse source only")
	cmd.Flags().BoolVar(&sink, "sink", false, "write closed trades back to ClickHouse")
	cmd.Flags().IntVar(&magnify, "magnify", 1, "aggregate every N source bars into one traded bar, keeping the source bars for fills")
	return cmd
}

func loadBars(ctx context.Context, cfg *config.Config, fromStr, toStr string, log *zap.Logger) ([]engine.Bar, error) {
	if csvPath != "" {
		return engine.LoadCSV(csvPath, cfg.Symbol, cfg.Timeframe)
	}
	from, to, err := parseWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}
	client, err := ch.NewClient(ctx, chOptions(cfg))
	if err != nil {
		return nil, err
	}
	defer client.Close()
	log.Info("loading bars",
		zap.String("symbol", cfg.Symbol),
		zap.String("timeframe", cfg.Timeframe))
	return client.Bars(ctx, cfg.Symbol, cfg.Timeframe, from, to)
}

func parseWindow(fromStr, toStr string) (int64, int64, error) {
	from := int64(0)
	to := time.Now().UnixMilli()
	if fromStr != "" {
		t, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return 0, 0, fmt.Errorf("parse --from: %w", err)
		}
		from = t.UnixMilli()
	}
	if toStr != "" {
		t, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return 0, 0, fmt.Errorf("parse --to: %w", err)
		}
		to = t.UnixMilli()
	}
	return from, to, nil
}

func chOptions(cfg *config.Config) ch.Options {
	return ch.Options{
		Addr:     cfg.ClickHouse.Addr,
		Database: cfg.ClickHouse.Database,
		Table:    cfg.ClickHouse.Table,
		User:     cfg.ClickHouse.User,
		Password: cfg.ClickHouse.Password,
	}
}

func writeTrades(cfg *config.Config, res engine.Result) error {
	sink := ch.NewTradeSink(
		cfg.ClickHouse.HTTPAddr,
		cfg.ClickHouse.Database,
		cfg.ClickHouse.User,
		cfg.ClickHouse.Password,
		1000,
	)
	for _, t := range res.Trades {
		if err := sink.Add(res.RunID, res.Symbol, t); err != nil {
			return err
		}
	}
	return sink.Close()
}

func printResult(res engine.Result) {
	s := res.Stats
	fmt.Printf("run        %s\n", res.RunID)
	fmt.Printf("config     %s\n", res.Manifest.ConfigHash)
	fmt.Printf("trades     %d (wins %d, losses %d, win rate %.1f%%)\n",
		s.TotalTrades, s.Wins, s.Losses, s.WinRate*100)
	fmt.Printf("net pnl    %.2f (gross +%.2f / -%.2f, fees %.2f)\n",
		s.NetPnL, s.GrossProfit, s.GrossLoss, s.FeesPaid)
	fmt.Printf("drawdown   %.2f\n", s.MaxDrawdown)
	fmt.Printf("equity     %.2f\n", s.FinalEquity)
	if res.Fault != nil {
		fmt.Printf("fault      %v\n", res.Fault)
	}
}
