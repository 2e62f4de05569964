package engine

// Fee and slippage models applied at fill time. Fees reduce cash and are
// recorded on the fill; slippage moves the fill price in the worse direction.

type FeeModel interface {
	Fee(side TradeSide, price, qty float64) float64
}

// BpsFee charges a flat rate in basis points per side.
type BpsFee struct{ Bps float64 }

func (m BpsFee) Fee(_ TradeSide, price, qty float64) float64 {
	return absf(price*qty) * m.Bps / 10_000.0
}

// NoFee charges nothing.
type NoFee struct{}

func (NoFee) Fee(TradeSide, float64, float64) float64 { return 0 }

type SlippageModel interface {
	Adjust(side TradeSide, price float64) float64
}

// BpsSlippage worsens the price by a flat rate in basis points.
type BpsSlippage struct{ Bps float64 }

func (s BpsSlippage) Adjust(side TradeSide, price float64) float64 {
	rate := s.Bps / 10_000.0
	if side == TradeSideBuy {
		return price * (1 + rate)
	}
	return price * (1 - rate)
}

// TickSlippage worsens the price by a fixed number of price units.
type TickSlippage struct{ Ticks float64 }

func (s TickSlippage) Adjust(side TradeSide, price float64) float64 {
	if side == TradeSideBuy {
		return price + s.Ticks
	}
	return price - s.Ticks
}

// NoSlippage leaves the price untouched.
type NoSlippage struct{}

func (NoSlippage) Adjust(_ TradeSide, price float64) float64 { return price }

// SymbolFilters carries exchange-style rounding constraints applied to
// submitted orders.
type SymbolFilters struct {
	PriceTick float64
	QtyStep   float64
}

// Apply rounds price and quantity to the symbol's constraints.
func (f SymbolFilters) Apply(price, qty float64) (float64, float64) {
	return roundStep(price, f.PriceTick), roundStep(qty, f.QtyStep)
}

func roundStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return float64(int64(v/step+0.5)) * step
}
