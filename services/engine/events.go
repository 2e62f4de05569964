package engine

type EventType int

const (
	EventOrderSubmit EventType = iota
	EventOrderReject
	EventOrderFill
	EventOrderCancel
	EventOCAInvalidate
	EventTradeOpen
	EventTradeClose
	EventEquityPoint
	EventLiquidation
)

func (t EventType) String() string {
	switch t {
	case EventOrderSubmit:
		return "order_submit"
	case EventOrderReject:
		return "order_reject"
	case EventOrderFill:
		return "order_fill"
	case EventOrderCancel:
		return "order_cancel"
	case EventOCAInvalidate:
		return "oca_invalidate"
	case EventTradeOpen:
		return "trade_open"
	case EventTradeClose:
		return "trade_close"
	case EventEquityPoint:
		return "equity_point"
	case EventLiquidation:
		return "liquidation"
	}
	return "unknown"
}

type Event struct {
	Ts      int64
	Type    EventType
	Symbol  string
	OrderID string
	Price   float64
	Qty     float64
	Equity  float64 // set on EventEquityPoint only
	Reason  string
}

// EventLog is the append-only stream of engine events. Observers are pure
// consumers notified synchronously, in order; the engine is single-threaded
// within a run so no locking is needed.
type EventLog struct {
	Events []Event
	subs   []func(Event)
}

func (l *EventLog) Append(e Event) {
	l.Events = append(l.Events, e)
	for _, fn := range l.subs {
		fn(e)
	}
}

// Subscribe registers an observer for all subsequent events.
func (l *EventLog) Subscribe(fn func(Event)) { l.subs = append(l.subs, fn) }
