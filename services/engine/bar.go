package engine

// Bar represents a single OHLCV bar.
//
// A bar with Historical=true carries fully confirmed values and is immutable.
// A realtime (forming) bar may be delivered repeatedly with the same OpenTime,
// each delivery being a snapshot of the bar so far; its final delivery has
// Historical=true and fixes the bar permanently.
type Bar struct {
	Symbol     string
	Timeframe  string
	OpenTime   int64 // ms since epoch, UTC
	CloseTime  int64
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Historical bool

	// Subs optionally carries a finer-grained sub-bar sequence for intrabar
	// magnification. When present the book matches against the sub-bars in
	// order instead of the synthetic path.
	Subs []SubBar
}

// StepMs returns the bar's interval length in milliseconds.
func (b Bar) StepMs() int64 { return b.CloseTime - b.OpenTime }

// Bullish reports whether the synthetic path visits the low before the high.
// The close==open case counts as bullish; this is the documented tie-break.
func (b Bar) Bullish() bool { return b.Close >= b.Open }

func (b Bar) Range() float64 { return b.High - b.Low }

func (b Bar) Body() float64 { return absf(b.Close - b.Open) }

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
