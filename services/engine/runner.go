package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Result is everything a completed (or halted) run produced. Fault carries
// the fatal error for halted runs; the ledger-derived fields are the last
// consistent state either way.
type Result struct {
	RunID    string
	Symbol   string
	Strategy string
	Fills    []Fill
	Trades   []Trade
	Open     []Trade
	Equity   []EquityPoint
	Events   []Event
	Stats    Stats
	Manifest Manifest
	Fault    error
}

// Run replays the feed against the strategy on a fresh engine and collects
// the result. Recoverable rejections are part of the result's event stream;
// fatal errors surface in Result.Fault alongside the last consistent state.
func Run(ctx context.Context, feed Feed, strat Strategy, cfg Config, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID), zap.String("strategy", strat.Name()))

	eng := NewEngine(cfg, log)
	err := eng.Run(ctx, feed, strat)

	ledger := eng.Ledger()
	res := Result{
		RunID:    runID,
		Symbol:   cfg.Symbol,
		Strategy: strat.Name(),
		Fills:    eng.Fills(),
		Trades:   ledger.ClosedTrades(),
		Open:     ledger.OpenTrades(),
		Equity:   ledger.EquityCurve(),
		Events:   eng.Events().Events,
		Stats:    ComputeStats(ledger.ClosedTrades(), ledger.EquityCurve(), ledger.FeesPaid()),
		Manifest: NewManifest(runID, cfg),
		Fault:    err,
	}
	if err != nil {
		log.Error("run halted", zap.Error(err))
	} else {
		log.Info("run complete",
			zap.Int("fills", len(res.Fills)),
			zap.Int("trades", len(res.Trades)),
			zap.Float64("net_pnl", res.Stats.NetPnL))
	}
	return res
}

// RunSpec is one element of a parameter sweep.
type RunSpec struct {
	Bars     []Bar
	Strategy Strategy
	Config   Config
}

// Sweep executes independent runs in parallel. Each run owns its own engine,
// feed cursor and ledger exclusively; there is no shared mutable state and no
// cross-run synchronization beyond the result slice.
func Sweep(ctx context.Context, specs []RunSpec, workers int, log *zap.Logger) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(specs))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				spec := specs[i]
				results[i] = Run(ctx, NewSliceFeed(spec.Bars), spec.Strategy, spec.Config, log)
			}
		}()
	}
	for i := range specs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}
