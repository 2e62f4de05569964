package engine

import "fmt"

// Repainting diagnosis: a lookahead-free strategy replayed over the same
// bars as history and as realtime ticks must produce identical fill and
// trade sequences. CompareRuns reports every divergence so the cause can be
// attributed (future-bar reads, per-tick order timing, or an immediate-close
// override).

// CompareRuns diffs the fill and closed-trade sequences of two results.
// An empty slice means the runs are reproductions of each other.
func CompareRuns(a, b Result) []string {
	var diffs []string
	if len(a.Fills) != len(b.Fills) {
		diffs = append(diffs, fmt.Sprintf("fill count: %d vs %d", len(a.Fills), len(b.Fills)))
	}
	for i := 0; i < len(a.Fills) && i < len(b.Fills); i++ {
		fa, fb := a.Fills[i], b.Fills[i]
		if fa.Side != fb.Side || fa.Kind != fb.Kind || fa.Price != fb.Price || fa.Qty != fb.Qty || fa.Time != fb.Time {
			diffs = append(diffs, fmt.Sprintf("fill %d: %s %s %.8g x %.8g @%d vs %s %s %.8g x %.8g @%d",
				i, fa.Side, fa.Kind, fa.Price, fa.Qty, fa.Time, fb.Side, fb.Kind, fb.Price, fb.Qty, fb.Time))
		}
	}
	if len(a.Trades) != len(b.Trades) {
		diffs = append(diffs, fmt.Sprintf("trade count: %d vs %d", len(a.Trades), len(b.Trades)))
	}
	for i := 0; i < len(a.Trades) && i < len(b.Trades); i++ {
		ta, tb := a.Trades[i], b.Trades[i]
		if ta.EntryPrice != tb.EntryPrice || ta.ExitPrice != tb.ExitPrice || ta.Qty != tb.Qty ||
			ta.EntryTime != tb.EntryTime || ta.ExitTime != tb.ExitTime {
			diffs = append(diffs, fmt.Sprintf("trade %d: entry %.8g exit %.8g qty %.8g vs entry %.8g exit %.8g qty %.8g",
				i, ta.EntryPrice, ta.ExitPrice, ta.Qty, tb.EntryPrice, tb.ExitPrice, tb.Qty))
		}
	}
	return diffs
}
