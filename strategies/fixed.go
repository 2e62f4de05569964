package strategies

import (
	"math"

	"brokersim/services/engine"
)

// FixedEntryExit opens a position at one bar index and closes it at another.
// It has no market logic at all, which makes it the reference strategy for
// determinism checks: two runs over the same feed must produce identical
// fills and trades.
type FixedEntryExit struct {
	EntryIndex int
	ExitIndex  int
	Side       engine.TradeSide
	Qty        float64
}

func (s *FixedEntryExit) Name() string { return "fixed_entry_exit" }
func (s *FixedEntryExit) Warmup() int  { return 0 }

func (s *FixedEntryExit) Evaluate(ev *engine.Evaluation) error {
	if ev.Realtime {
		return nil
	}
	switch ev.Index {
	case s.EntryIndex:
		o := engine.NewMarket(s.Side, s.Qty)
		o.Immediate = true
		ev.Submit(o)
	case s.ExitIndex:
		if q := ev.Ledger.Position.Qty; q != 0 {
			side := engine.TradeSideSell
			if q < 0 {
				side = engine.TradeSideBuy
			}
			ev.Close(side, math.Abs(q))
		}
	}
	return nil
}
