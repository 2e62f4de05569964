package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarPathBullishVisitsLowFirst(t *testing.T) {
	legs := barPath(100, 110, 95, 105)
	assert.Equal(t, [3]pathLeg{{100, 95}, {95, 110}, {110, 105}}, legs)
}

func TestBarPathBearishVisitsHighFirst(t *testing.T) {
	legs := barPath(100, 110, 95, 98)
	assert.Equal(t, [3]pathLeg{{100, 110}, {110, 95}, {95, 98}}, legs)
}

func TestBarPathDojiCountsAsBullish(t *testing.T) {
	b := Bar{Open: 100, High: 101, Low: 99, Close: 100}
	assert.True(t, b.Bullish())
	legs := barPath(b.Open, b.High, b.Low, b.Close)
	assert.Equal(t, pathLeg{100, 99}, legs[0])
}

func TestTouchDistanceOrdersEvents(t *testing.T) {
	legs := barPath(100, 110, 95, 105)

	dLow, ok := touch(legs, 97)
	require.True(t, ok)
	assert.Equal(t, 3.0, dLow)

	dHigh, ok := touch(legs, 108)
	require.True(t, ok)
	assert.Equal(t, 18.0, dHigh) // 5 down, then 13 up

	// The level below the low is never touched.
	_, ok = touch(legs, 94)
	assert.False(t, ok)
}

func TestTouchFromSkipsTraversedPath(t *testing.T) {
	legs := barPath(100, 110, 95, 105)

	// 97 touches at distance 3 on the way down, and again at distance 7 on
	// the way up; a floor past the first touch yields the second.
	d, ok := touchFrom(legs, 97, 4)
	require.True(t, ok)
	assert.Equal(t, 7.0, d)

	_, ok = touchFrom(legs, 96, 20)
	assert.False(t, ok)
}
