package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, f Feed) []Bar {
	t.Helper()
	var out []Bar
	for {
		b, ok, err := f.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestTickFeedExpandsAlongPath(t *testing.T) {
	bar := Bar{Symbol: "TEST", OpenTime: 0, CloseTime: 60_000,
		Open: 100, High: 110, Low: 95, Close: 105, Historical: true}
	got := drain(t, NewTickFeed([]Bar{bar}))
	require.Len(t, got, 4)

	// Snapshots develop open -> low -> high -> confirmed for a bullish bar,
	// and every snapshot is a valid partial bar.
	assert.Equal(t, Bar{Symbol: "TEST", CloseTime: 60_000, Open: 100, High: 100, Low: 100, Close: 100}, got[0])
	assert.Equal(t, 95.0, got[1].Low)
	assert.Equal(t, 95.0, got[1].Close)
	assert.False(t, got[1].Historical)
	assert.Equal(t, 110.0, got[2].High)
	assert.Equal(t, 110.0, got[2].Close)
	assert.Equal(t, bar, got[3])
	assert.True(t, got[3].Historical)

	for _, s := range got {
		assert.Equal(t, bar.OpenTime, s.OpenTime)
		assert.GreaterOrEqual(t, s.High, s.Low)
		assert.LessOrEqual(t, s.Low, s.Open)
		assert.GreaterOrEqual(t, s.High, s.Close)
	}
}

func TestTickFeedBearishVisitsHighFirst(t *testing.T) {
	bar := Bar{OpenTime: 0, CloseTime: 60_000,
		Open: 100, High: 110, Low: 95, Close: 97, Historical: true}
	got := drain(t, NewTickFeed([]Bar{bar}))
	require.Len(t, got, 4)
	assert.Equal(t, 110.0, got[1].High)
	assert.Equal(t, 95.0, got[2].Low)
}

func TestSliceFeedExhausts(t *testing.T) {
	bars := mkBars([4]float64{100, 101, 99, 100})
	f := NewSliceFeed(bars)
	got := drain(t, f)
	assert.Equal(t, bars, got)

	_, ok, err := f.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMagnifiedBarResolvesAmbiguity(t *testing.T) {
	b := newTestBook()
	stop := NewStop(TradeSideSell, 1, 95)
	stop.OCAName, stop.OCAPolicy = "g", OCACancelAll
	limit := NewLimit(TradeSideSell, 1, 110)
	limit.OCAName, limit.OCAPolicy = "g", OCACancelAll
	require.NoError(t, b.Submit(stop, 100, 1, 0))
	require.NoError(t, b.Submit(limit, 100, 1, 0))

	// The synthetic path for this bullish bar would visit the low (and the
	// stop) first. The sub-bars say the opposite: the high printed before
	// the low, so the limit must win.
	bar := Bar{Open: 100, High: 111, Low: 89, Close: 105, CloseTime: 60_000, Historical: true,
		Subs: []SubBar{
			{Ts: 15_000, Open: 100, High: 111, Low: 100, Close: 110},
			{Ts: 30_000, Open: 110, High: 110, Low: 89, Close: 90},
			{Ts: 60_000, Open: 90, High: 105, Low: 90, Close: 105},
		}}
	fills := b.MatchBar(bar, 0, 2)
	require.Len(t, fills, 1)
	assert.Equal(t, limit.ID, fills[0].OrderID)
	assert.Equal(t, 110.0, fills[0].Price)
}

func TestLoadCSVStripsBOMAndHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	data := "\xef\xbb\xbftimestamp,open,high,low,close,volume\n" +
		"0,100,101,99,100.5,12\n" +
		"60000,100.5,102,100,101,8\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	bars, err := LoadCSV(path, "TEST", "1m")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(0), bars[0].OpenTime)
	assert.Equal(t, int64(60_000), bars[0].CloseTime)
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 12.0, bars[0].Volume)
	assert.True(t, bars[0].Historical)
	assert.Equal(t, "TEST", bars[0].Symbol)
}
