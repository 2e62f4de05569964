// Package strategies ships the built-in trading strategies used by the
// simulator CLI and its verification harness.
package strategies

import (
	"fmt"
	"math"

	"brokersim/services/engine"
)

// SMACross goes long on a fast/slow moving-average golden cross and short on
// the death cross, protecting every entry with a percentage bracket.
type SMACross struct {
	Fast     int
	Slow     int
	Qty      float64
	StopPct  float64 // stop distance as fraction of entry price
	LimitPct float64 // target distance as fraction of entry price
}

func NewSMACross(fast, slow int, qty float64) *SMACross {
	return &SMACross{
		Fast:     fast,
		Slow:     slow,
		Qty:      qty,
		StopPct:  0.02,
		LimitPct: 0.04,
	}
}

func (s *SMACross) Name() string { return fmt.Sprintf("sma_cross_%d_%d", s.Fast, s.Slow) }

// Warmup needs one extra bar so the previous averages exist for cross
// detection.
func (s *SMACross) Warmup() int { return s.Slow + 1 }

func (s *SMACross) Evaluate(ev *engine.Evaluation) error {
	fast := s.sma(ev, s.Fast)
	slow := s.sma(ev, s.Slow)

	prevFast := ev.Vars.RunFloat("sma.fast", fast)
	prevSlow := ev.Vars.RunFloat("sma.slow", slow)
	ev.Vars.SetRun("sma.fast", fast)
	ev.Vars.SetRun("sma.slow", slow)

	pos := ev.Ledger.Position

	switch {
	case prevFast <= prevSlow && fast > slow && pos.Qty <= 0:
		s.enter(ev, engine.TradeSideBuy, pos.Qty)
	case prevFast >= prevSlow && fast < slow && pos.Qty >= 0:
		s.enter(ev, engine.TradeSideSell, pos.Qty)
	}
	return nil
}

func (s *SMACross) enter(ev *engine.Evaluation, side engine.TradeSide, posQty float64) {
	if posQty != 0 {
		ev.Close(side, math.Abs(posQty))
	}
	o := engine.NewMarket(side, s.Qty)
	ev.Submit(o)

	px := ev.Bar.Close
	spec := engine.ExitSpec{EntryID: o.ID}
	if side == engine.TradeSideBuy {
		spec.Stop = px * (1 - s.StopPct)
		spec.Limit = px * (1 + s.LimitPct)
	} else {
		spec.Stop = px * (1 + s.StopPct)
		spec.Limit = px * (1 - s.LimitPct)
	}
	ev.Exit(spec)
}

// sma averages the last n closes ending at the evaluated bar. Intrabar
// re-evaluations see the forming close, so the value can differ between ticks
// of the same bar; only the confirmed close is stable.
func (s *SMACross) sma(ev *engine.Evaluation, n int) float64 {
	sum := ev.Bar.Close
	count := 1
	hist := ev.Bars
	if ev.Index < len(hist) {
		hist = hist[:ev.Index] // evaluated bar is already counted
	}
	for i := len(hist) - 1; i >= 0 && count < n; i-- {
		sum += hist[i].Close
		count++
	}
	return sum / float64(count)
}
