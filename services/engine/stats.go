package engine

// Stats aggregates closed-trade outcomes and the equity series.
type Stats struct {
	TotalTrades  int
	Wins         int
	Losses       int
	BreakEvens   int
	WinRate      float64
	GrossProfit  float64
	GrossLoss    float64
	NetPnL       float64
	ProfitFactor float64
	MaxDrawdown  float64
	FeesPaid     float64
	FinalEquity  float64
}

func ComputeStats(trades []Trade, equity []EquityPoint, fees float64) Stats {
	s := Stats{FeesPaid: fees}
	for _, t := range trades {
		pnl := tradePnL(t)
		s.TotalTrades++
		s.NetPnL += pnl
		switch {
		case pnl > 0:
			s.Wins++
			s.GrossProfit += pnl
		case pnl < 0:
			s.Losses++
			s.GrossLoss -= pnl
		default:
			s.BreakEvens++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	peak := 0.0
	for i, p := range equity {
		if i == 0 || p.Equity > peak {
			peak = p.Equity
		}
		if dd := peak - p.Equity; dd > s.MaxDrawdown {
			s.MaxDrawdown = dd
		}
	}
	if n := len(equity); n > 0 {
		s.FinalEquity = equity[n-1].Equity
	}
	return s
}

// tradePnL is the realized result of one closed trade lot.
func tradePnL(t Trade) float64 {
	return (t.ExitPrice - t.EntryPrice) * t.Qty
}
