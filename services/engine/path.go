package engine

// Synthetic intrabar path. Only O/H/L/C is known for a bar, so the emulator
// assumes price moves open -> low -> high -> close when the bar closes at or
// above its open, and open -> high -> low -> close otherwise. This single
// assumption decides which of two opposing levels breached in the same bar is
// hit first, and therefore every bracket-order outcome.

type pathLeg struct {
	from float64
	to   float64
}

// barPath returns the ordered legs of the assumed intrabar path.
func barPath(open, high, low, close float64) [3]pathLeg {
	if close >= open {
		return [3]pathLeg{{open, low}, {low, high}, {high, close}}
	}
	return [3]pathLeg{{open, high}, {high, low}, {low, close}}
}

// touchFrom returns the travel distance from the bar open at which the path
// first touches level, considering only touches at or after startDist.
// Distance is cumulative absolute price movement along the path, which gives
// a total order on intrabar events.
func touchFrom(legs [3]pathLeg, level, startDist float64) (float64, bool) {
	var cum float64
	for _, leg := range legs {
		lo, hi := minf(leg.from, leg.to), maxf(leg.from, leg.to)
		length := hi - lo
		if level >= lo && level <= hi {
			d := cum + absf(level-leg.from)
			if d >= startDist {
				return d, true
			}
		}
		cum += length
	}
	return 0, false
}

// touch is touchFrom from the bar open.
func touch(legs [3]pathLeg, level float64) (float64, bool) {
	return touchFrom(legs, level, 0)
}

// pathTotal is the full travel distance of the path, the position of the
// close.
func pathTotal(legs [3]pathLeg) float64 {
	var cum float64
	for _, leg := range legs {
		cum += absf(leg.to - leg.from)
	}
	return cum
}
