package engine

// Intrabar magnification. When a coarse bar carries a finer-grained sub-bar
// sequence, fills resolve against the actual sub-bars in order instead of the
// synthetic path, which removes most of the path assumption's ambiguity.

// SubBar is one element of a magnification stream (e.g. a 1s bar inside a 1m
// bar).
type SubBar struct {
	Ts    int64
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// matchSubs resolves fills sub-bar by sub-bar. Within each sub-bar the same
// synthetic path assumption applies at the finer granularity.
func (b *Book) matchSubs(bar Bar, barIndex, evalSeq int) []Fill {
	var fills []Fill
	for _, sb := range bar.Subs {
		fs, _ := b.MatchFrom(sb.Open, sb.High, sb.Low, sb.Close, sb.Ts, 0, barIndex, evalSeq)
		fills = append(fills, fs...)
	}
	return fills
}
