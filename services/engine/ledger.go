package engine

// qtyEps absorbs float dust when fractional quantities are subtracted across
// lots; anything smaller is treated as zero.
const qtyEps = 1e-9

type TradeStatus int

const (
	TradeOpen TradeStatus = iota
	TradeClosed
)

// Trade is one lot of exposure. It opens on the fill that establishes or
// increases a position and closes on the fill(s) that reduce it to zero.
// Qty is signed: positive for long lots, negative for short.
type Trade struct {
	EntryID    string
	EntryTime  int64
	EntryPrice float64
	ExitTime   int64
	ExitPrice  float64
	Qty        float64
	Status     TradeStatus
}

// CloseRule selects which open lots a reducing fill closes first.
type CloseRule int

const (
	CloseFIFO CloseRule = iota
	CloseLIFO
)

type Position struct {
	Symbol   string
	Qty      float64 // signed
	AvgEntry float64 // undefined (0) when flat
}

type EquityPoint struct {
	Time        int64
	Cash        float64
	PositionQty float64
	Close       float64
	Equity      float64
}

// Ledger is the single source of truth for exposure and trade outcomes. It is
// purely reactive to fills: nothing else mutates the trade collection, and it
// is never reset except at engine initialization.
type Ledger struct {
	symbol   string
	rule     CloseRule
	cash     float64
	realized float64
	feesPaid float64
	open     []*Trade
	closed   []Trade
	equity   []EquityPoint
	lastMark float64
	events   *EventLog
}

func NewLedger(symbol string, initialCash float64, rule CloseRule, events *EventLog) *Ledger {
	return &Ledger{symbol: symbol, rule: rule, cash: initialCash, events: events}
}

// Apply folds one fill into the ledger. A fill that increases exposure opens a
// new lot; a reducing fill closes lots per the close rule; a fill past zero
// closes everything and opens a lot in the opposite direction, all within the
// same fill event.
func (l *Ledger) Apply(f Fill) {
	signed := f.Side.Sign() * f.Qty
	l.cash -= signed * f.Price
	l.cash -= f.Fee
	l.feesPaid += f.Fee

	pos := l.positionQty()
	if pos == 0 || (pos > 0) == (signed > 0) {
		l.openLot(f, signed)
		return
	}

	// Reducing or reversing.
	rem := absf(signed)
	for rem > qtyEps && len(l.open) > 0 {
		lot := l.nextLot()
		lotAbs := absf(lot.Qty)
		closeQty := minf(lotAbs, rem)
		dir := 1.0
		if lot.Qty < 0 {
			dir = -1
		}
		l.realized += (f.Price - lot.EntryPrice) * closeQty * dir
		l.closed = append(l.closed, Trade{
			EntryID:    lot.EntryID,
			EntryTime:  lot.EntryTime,
			EntryPrice: lot.EntryPrice,
			ExitTime:   f.Time,
			ExitPrice:  f.Price,
			Qty:        closeQty * dir,
			Status:     TradeClosed,
		})
		l.events.Append(Event{Ts: f.Time, Type: EventTradeClose, Symbol: l.symbol, OrderID: lot.EntryID, Price: f.Price, Qty: closeQty * dir})
		lot.Qty -= closeQty * dir
		if absf(lot.Qty) <= qtyEps {
			l.removeLot(lot)
		}
		rem -= closeQty
	}
	if rem > qtyEps {
		// Reversal remainder opens the opposite direction.
		l.openLot(f, rem*f.Side.Sign())
	}
}

func (l *Ledger) openLot(f Fill, signed float64) {
	lot := &Trade{
		EntryID:    f.OrderID,
		EntryTime:  f.Time,
		EntryPrice: f.Price,
		Qty:        signed,
		Status:     TradeOpen,
	}
	l.open = append(l.open, lot)
	l.events.Append(Event{Ts: f.Time, Type: EventTradeOpen, Symbol: l.symbol, OrderID: f.OrderID, Price: f.Price, Qty: signed})
}

func (l *Ledger) nextLot() *Trade {
	if l.rule == CloseLIFO {
		return l.open[len(l.open)-1]
	}
	return l.open[0]
}

func (l *Ledger) removeLot(t *Trade) {
	for i, lot := range l.open {
		if lot == t {
			l.open = append(l.open[:i], l.open[i+1:]...)
			return
		}
	}
}

func (l *Ledger) positionQty() float64 {
	var q float64
	for _, lot := range l.open {
		q += lot.Qty
	}
	return q
}

// Position returns the current derived position.
func (l *Ledger) Position() Position {
	q := l.positionQty()
	if q == 0 {
		return Position{Symbol: l.symbol}
	}
	var notional float64
	for _, lot := range l.open {
		notional += lot.EntryPrice * absf(lot.Qty)
	}
	var abs float64
	for _, lot := range l.open {
		abs += absf(lot.Qty)
	}
	return Position{Symbol: l.symbol, Qty: q, AvgEntry: notional / abs}
}

// Mark records an equity point against the given close. Marking never mutates
// trade records, only the derived equity series.
func (l *Ledger) Mark(ts int64, close float64) {
	l.lastMark = close
	pos := l.positionQty()
	eq := l.cash + pos*close
	l.equity = append(l.equity, EquityPoint{Time: ts, Cash: l.cash, PositionQty: pos, Close: close, Equity: eq})
	l.events.Append(Event{Ts: ts, Type: EventEquityPoint, Symbol: l.symbol, Price: close, Equity: eq})
}

// Equity is cash plus exposure marked at the latest close.
func (l *Ledger) Equity() float64 { return l.cash + l.positionQty()*l.lastMark }

func (l *Ledger) Cash() float64     { return l.cash }
func (l *Ledger) Realized() float64 { return l.realized }
func (l *Ledger) FeesPaid() float64 { return l.feesPaid }

// OpenTrades returns copies of the open lots, oldest first.
func (l *Ledger) OpenTrades() []Trade {
	out := make([]Trade, len(l.open))
	for i, lot := range l.open {
		out[i] = *lot
	}
	return out
}

// ClosedTrades returns the closed trade records in close order.
func (l *Ledger) ClosedTrades() []Trade { return l.closed }

// EquityCurve returns the recorded equity series.
func (l *Ledger) EquityCurve() []EquityPoint { return l.equity }

// OpenQtyFor returns the absolute open quantity attributable to one entry
// order.
func (l *Ledger) OpenQtyFor(entryID string) float64 {
	var q float64
	for _, lot := range l.open {
		if lot.EntryID == entryID {
			q += absf(lot.Qty)
		}
	}
	return q
}

// EntryFor returns the open lot for an entry order, if any.
func (l *Ledger) EntryFor(entryID string) (Trade, bool) {
	for _, lot := range l.open {
		if lot.EntryID == entryID {
			return *lot, true
		}
	}
	return Trade{}, false
}

// LedgerView is the read-only snapshot handed to strategy evaluations.
type LedgerView struct {
	Position   Position
	OpenTrades []Trade
	Cash       float64
	Equity     float64
	Realized   float64
}

func (l *Ledger) View() LedgerView {
	return LedgerView{
		Position:   l.Position(),
		OpenTrades: l.OpenTrades(),
		Cash:       l.cash,
		Equity:     l.Equity(),
		Realized:   l.realized,
	}
}
