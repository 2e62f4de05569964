package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBook() *Book {
	return NewBook(&EventLog{})
}

// Orders are submitted after evaluation 1 and matched at evaluation 2
// throughout; eligibility itself is covered by TestOrderNotMatchableSameEval.
const (
	submitSeq = 1
	matchSeq  = 2
)

func TestLimitFillsBeforeStopOnBullishBar(t *testing.T) {
	b := newTestBook()
	buy := NewLimit(TradeSideBuy, 1, 97)
	sell := NewStop(TradeSideSell, 1, 108)
	require.NoError(t, b.Submit(buy, 100, submitSeq, 0))
	require.NoError(t, b.Submit(sell, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 100, High: 110, Low: 95, Close: 109, CloseTime: 60_000, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 2)
	// Bullish bar: the low is visited first, so the limit below fills before
	// the stop above.
	assert.Equal(t, buy.ID, fills[0].OrderID)
	assert.Equal(t, 97.0, fills[0].Price)
	assert.Equal(t, sell.ID, fills[1].OrderID)
	assert.Equal(t, 108.0, fills[1].Price)
}

func TestBreakoutStopGapFillsAtOpen(t *testing.T) {
	b := newTestBook()
	stop := NewStop(TradeSideBuy, 1, 100)
	require.NoError(t, b.Submit(stop, 95, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 105, High: 106, Low: 104, Close: 105.5, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	// The bar opened through the trigger; the fill happens at the open, not
	// at the stop price.
	assert.Equal(t, 105.0, fills[0].Price)
}

func TestProtectiveStopWaitsForTouch(t *testing.T) {
	b := newTestBook()
	// A sell stop above the submission reference is not on the breakout
	// side; it must wait for the path to touch its level even though the
	// level lies between open and high.
	stop := NewStop(TradeSideSell, 1, 108)
	require.NoError(t, b.Submit(stop, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 109, High: 112, Low: 107, Close: 111, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, 108.0, fills[0].Price)
}

func TestCancelAllGroupFillsExactlyOne(t *testing.T) {
	b := newTestBook()
	stop := NewStop(TradeSideSell, 2, 95)
	stop.OCAName, stop.OCAPolicy = "exit:e1", OCACancelAll
	limit := NewLimit(TradeSideSell, 2, 110)
	limit.OCAName, limit.OCAPolicy = "exit:e1", OCACancelAll
	require.NoError(t, b.Submit(stop, 100, submitSeq, 0))
	require.NoError(t, b.Submit(limit, 100, submitSeq, 0))

	// Both levels are inside the bar; the bullish path reaches the stop
	// first and the limit must be invalidated atomically with that fill.
	fills := b.MatchBar(Bar{Open: 100, High: 111, Low: 89, Close: 105, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, stop.ID, fills[0].OrderID)
	assert.Equal(t, 95.0, fills[0].Price)

	status, _, ok := b.Get(limit.ID)
	require.True(t, ok)
	assert.Equal(t, OrderInvalidated, status)
}

func TestReduceGroupDecrementsSiblings(t *testing.T) {
	b := newTestBook()
	tp := NewLimit(TradeSideSell, 1, 105)
	tp.OCAName, tp.OCAPolicy = "scale:e1", OCAReduce
	stop := NewStop(TradeSideSell, 2, 95)
	stop.OCAName, stop.OCAPolicy = "scale:e1", OCAReduce
	require.NoError(t, b.Submit(tp, 100, submitSeq, 0))
	require.NoError(t, b.Submit(stop, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 100, High: 106, Low: 99, Close: 104, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, tp.ID, fills[0].OrderID)

	status, remaining, ok := b.Get(stop.ID)
	require.True(t, ok)
	assert.Equal(t, OrderActive, status)
	assert.Equal(t, 1.0, remaining)
	assert.Equal(t, 1.0, b.GroupRemaining("scale:e1"))
}

func TestReduceGroupInvalidatesAtZero(t *testing.T) {
	b := newTestBook()
	tp := NewLimit(TradeSideSell, 2, 105)
	tp.OCAName, tp.OCAPolicy = "scale:e1", OCAReduce
	stop := NewStop(TradeSideSell, 2, 95)
	stop.OCAName, stop.OCAPolicy = "scale:e1", OCAReduce
	require.NoError(t, b.Submit(tp, 100, submitSeq, 0))
	require.NoError(t, b.Submit(stop, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 100, High: 106, Low: 99, Close: 104, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)

	status, remaining, ok := b.Get(stop.ID)
	require.True(t, ok)
	assert.Equal(t, OrderInvalidated, status)
	assert.Equal(t, 0.0, remaining)
}

func TestOrderNotMatchableSameEval(t *testing.T) {
	b := newTestBook()
	o := NewLimit(TradeSideBuy, 1, 100)
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))

	// evalSeq equal to the submission sequence: the creator already saw this
	// data, so nothing may fill.
	fills := b.MatchBar(Bar{Open: 100, High: 101, Low: 99, Close: 100, Historical: true}, 0, submitSeq)
	assert.Empty(t, fills)

	fills = b.MatchBar(Bar{Open: 100, High: 101, Low: 99, Close: 100, Historical: true}, 1, matchSeq)
	assert.Len(t, fills, 1)
}

func TestSubmissionOrderBreaksPathTies(t *testing.T) {
	b := newTestBook()
	first := NewLimit(TradeSideBuy, 1, 97)
	second := NewLimit(TradeSideBuy, 1, 97)
	require.NoError(t, b.Submit(first, 100, submitSeq, 0))
	require.NoError(t, b.Submit(second, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 100, High: 101, Low: 96, Close: 100, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 2)
	assert.Equal(t, first.ID, fills[0].OrderID)
	assert.Equal(t, second.ID, fills[1].OrderID)
}

func TestStopLimitArmsThenFillsNextBar(t *testing.T) {
	b := newTestBook()
	// Buy stop-limit: trigger at 105, but pay at most 104. The trigger bar
	// runs away without ever coming back to the limit.
	o := NewStopLimit(TradeSideBuy, 1, 105, 104)
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 100, High: 108, Low: 99, Close: 107, Historical: true}, 0, matchSeq)
	assert.Empty(t, fills)

	// Armed now; a later bar touching 104 fills at the limit.
	fills = b.MatchBar(Bar{Open: 107, High: 107.5, Low: 103, Close: 106, Historical: true}, 1, matchSeq+1)
	require.Len(t, fills, 1)
	assert.Equal(t, 104.0, fills[0].Price)
}

func TestStopLimitFillsSameBarWhenLimitAllows(t *testing.T) {
	b := newTestBook()
	// Trigger at 105 with limit 106: the trigger price itself satisfies the
	// limit, so the order fills the moment it trips.
	o := NewStopLimit(TradeSideBuy, 1, 105, 106)
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))

	fills := b.MatchBar(Bar{Open: 100, High: 108, Low: 99, Close: 107, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, 105.0, fills[0].Price)
}

func TestTrailingStopRatchetsMonotonically(t *testing.T) {
	b := newTestBook()
	o := NewTrailing(TradeSideSell, 1, 5, 0)
	o.StopPrice = 95
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))

	b.UpdateTrail(o.ID, 103)
	p, ok := b.TrailPrice(o.ID)
	require.True(t, ok)
	assert.Equal(t, 103.0, p)

	// Price retreats: the trigger never moves back down.
	b.UpdateTrail(o.ID, 99)
	p, _ = b.TrailPrice(o.ID)
	assert.Equal(t, 103.0, p)

	fills := b.MatchBar(Bar{Open: 106, High: 107, Low: 102, Close: 104, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, 103.0, fills[0].Price)
}

func TestTrailingStopInactiveUntilActivation(t *testing.T) {
	b := newTestBook()
	o := NewTrailing(TradeSideSell, 1, 5, 110)
	o.StopPrice = 95
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))

	// Level breached, but the trail has not activated.
	fills := b.MatchBar(Bar{Open: 100, High: 101, Low: 94, Close: 96, Historical: true}, 0, matchSeq)
	assert.Empty(t, fills)

	b.ActivateTrail(o.ID)
	fills = b.MatchBar(Bar{Open: 96, High: 97, Low: 94, Close: 95, Historical: true}, 1, matchSeq+1)
	require.Len(t, fills, 1)
}

func TestCancelledOrderNeverFills(t *testing.T) {
	b := newTestBook()
	o := NewLimit(TradeSideBuy, 1, 97)
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))
	require.True(t, b.Cancel(o.ID, 0))
	assert.False(t, b.Cancel(o.ID, 0)) // already terminal

	fills := b.MatchBar(Bar{Open: 100, High: 101, Low: 95, Close: 100, Historical: true}, 0, matchSeq)
	assert.Empty(t, fills)
}

func TestMatchFromFloorSkipsTraversedPath(t *testing.T) {
	b := newTestBook()
	o := NewLimit(TradeSideBuy, 1, 97)
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))

	// Bullish bar 100->95->110->105: 97 is touched at distance 3 and 7.
	// With the first five units of travel already consumed, the fill lands
	// on the second touch.
	fills, last := b.MatchFrom(100, 110, 95, 105, 0, 5, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, 97.0, fills[0].Price)
	assert.Equal(t, 7.0, last)
}

func TestRewriteStopMovesTrigger(t *testing.T) {
	b := newTestBook()
	o := NewStop(TradeSideSell, 1, 95)
	require.NoError(t, b.Submit(o, 100, submitSeq, 0))
	b.RewriteStop(o.ID, 100)

	fills := b.MatchBar(Bar{Open: 102, High: 103, Low: 99, Close: 101, Historical: true}, 0, matchSeq)
	require.Len(t, fills, 1)
	assert.Equal(t, 100.0, fills[0].Price)
}

func TestSubmitRejectsInvalidIntent(t *testing.T) {
	b := newTestBook()
	o := NewLimit(TradeSideBuy, 0, 97)
	err := b.Submit(o, 100, submitSeq, 0)
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, 0, b.ActiveCount())
}
