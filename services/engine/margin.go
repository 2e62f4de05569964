package engine

import "fmt"

// MarginConfig expresses margin requirements as fractions of notional.
// Zero rates disable the check entirely.
type MarginConfig struct {
	Long  float64
	Short float64
	// Maintenance, when positive, enables forced liquidation: if equity
	// falls below |position| * mark * Maintenance the position is closed at
	// the bar close. An order is otherwise never silently resized.
	Maintenance float64
}

func (m MarginConfig) rate(side TradeSide) float64 {
	if side == TradeSideBuy {
		return m.Long
	}
	return m.Short
}

func (m MarginConfig) enabled() bool { return m.Long > 0 || m.Short > 0 }

// usedMargin returns the margin consumed by the current position at mark.
func (m MarginConfig) usedMargin(posQty, mark float64) float64 {
	if posQty > 0 {
		return posQty * mark * m.Long
	}
	return -posQty * mark * m.Short
}

// checkMargin rejects an exposure-increasing order whose margin requirement
// exceeds what the current equity can carry. Reducing orders always pass.
func (m MarginConfig) checkMargin(l *Ledger, intent OrderIntent, refPrice float64) error {
	if !m.enabled() {
		return nil
	}
	pos := l.positionQty()
	signed := intent.Side.Sign() * intent.Qty
	increase := absf(pos+signed) - absf(pos)
	if increase <= 0 {
		return nil
	}
	required := increase * refPrice * m.rate(intent.Side)
	equity := l.Cash() + pos*refPrice
	available := equity - m.usedMargin(pos, refPrice)
	if required > available {
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientMargin, required, available)
	}
	return nil
}

// liquidated reports whether the maintenance threshold has been breached.
func (m MarginConfig) liquidated(l *Ledger, mark float64) bool {
	if m.Maintenance <= 0 {
		return false
	}
	pos := l.positionQty()
	if pos == 0 {
		return false
	}
	equity := l.Cash() + pos*mark
	return equity < absf(pos)*mark*m.Maintenance
}
