package engine

// Resample aggregates a fine-grained bar series into coarser bars of n
// source bars each, attaching the source bars as the magnification stream.
// Matching against a resampled bar then resolves fills on the real intrabar
// sequence instead of the synthetic path. A trailing partial group is
// dropped, since its coarse bar is not yet confirmed.
func Resample(bars []Bar, n int) []Bar {
	if n <= 1 || len(bars) == 0 {
		return bars
	}
	out := make([]Bar, 0, len(bars)/n)
	for i := 0; i+n <= len(bars); i += n {
		group := bars[i : i+n]
		coarse := Bar{
			Symbol:     group[0].Symbol,
			Timeframe:  group[0].Timeframe,
			OpenTime:   group[0].OpenTime,
			CloseTime:  group[n-1].CloseTime,
			Open:       group[0].Open,
			High:       group[0].High,
			Low:        group[0].Low,
			Close:      group[n-1].Close,
			Historical: true,
			Subs:       make([]SubBar, n),
		}
		for j, b := range group {
			coarse.High = maxf(coarse.High, b.High)
			coarse.Low = minf(coarse.Low, b.Low)
			coarse.Volume += b.Volume
			coarse.Subs[j] = SubBar{Ts: b.CloseTime, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close}
		}
		out = append(out, coarse)
	}
	return out
}
