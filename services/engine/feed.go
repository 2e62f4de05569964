package engine

// Feed is a pull-based iterator of bars. The engine only ever observes
// already-materialized bars; a feed may be backed by anything, but Next must
// not be called concurrently.
type Feed interface {
	// Next returns the next bar, or ok=false when the feed is exhausted.
	Next() (bar Bar, ok bool, err error)
}

// SliceFeed replays an in-memory bar slice.
type SliceFeed struct {
	bars []Bar
	i    int
}

func NewSliceFeed(bars []Bar) *SliceFeed { return &SliceFeed{bars: bars} }

func (f *SliceFeed) Next() (Bar, bool, error) {
	if f.i >= len(f.bars) {
		return Bar{}, false, nil
	}
	b := f.bars[f.i]
	f.i++
	return b, true, nil
}

// TickFeed replays confirmed bars as sequences of realtime snapshots followed
// by the confirmed bar, simulating live operation. Snapshots develop along
// the synthetic path (open, then the nearer-in-path extreme, then the other,
// then the confirmed close), so a lookahead-free strategy must produce the
// same fills as a plain historical replay.
type TickFeed struct {
	bars    []Bar
	i       int
	pending []Bar
}

func NewTickFeed(bars []Bar) *TickFeed { return &TickFeed{bars: bars} }

func (f *TickFeed) Next() (Bar, bool, error) {
	if len(f.pending) == 0 {
		if f.i >= len(f.bars) {
			return Bar{}, false, nil
		}
		f.pending = ticksFor(f.bars[f.i])
		f.i++
	}
	b := f.pending[0]
	f.pending = f.pending[1:]
	return b, true, nil
}

// ticksFor expands one confirmed bar into its snapshot sequence.
func ticksFor(b Bar) []Bar {
	open := Bar{Symbol: b.Symbol, Timeframe: b.Timeframe, OpenTime: b.OpenTime, CloseTime: b.CloseTime,
		Open: b.Open, High: b.Open, Low: b.Open, Close: b.Open}
	first := open
	second := open
	if b.Bullish() {
		first.Low, first.Close = b.Low, b.Low
		second.Low, second.High, second.Close = b.Low, b.High, b.High
	} else {
		first.High, first.Close = b.High, b.High
		second.High, second.Low, second.Close = b.High, b.Low, b.Low
	}
	confirmed := b
	confirmed.Historical = true
	return []Bar{open, first, second, confirmed}
}
