package engine

import "sort"

// bookOrder is an order resident in the book's arena. Sibling OCA orders
// reference each other only through the group index, never directly.
type bookOrder struct {
	intent OrderIntent
	status OrderStatus
	seq    int

	// remaining is the unfilled quantity; reduce-policy groups shrink it.
	remaining float64

	// eligibleAfter is the evaluation sequence at submission; an order only
	// matches against data seen after the evaluation that created it.
	eligibleAfter int

	// ref is the market price at submission. It fixes a stop order's
	// triggering direction: a stop on the breakout side of ref can be
	// gapped through at the open, a stop on the other side triggers only
	// on a touch of its level.
	ref float64

	// armed marks a stop-limit whose stop condition has been met, making it
	// a live limit order.
	armed bool

	// trailPrice is the current trigger of a trailing stop. It only ever
	// moves in the favorable direction.
	trailPrice  float64
	trailActive bool
}

// Book accepts order intents and matches them against bar data under the
// synthetic path assumption, producing fills. Orders live in an arena; OCA
// groups are an index from group name to member arena slots.
type Book struct {
	orders []*bookOrder
	byID   map[string]int
	oca    map[string][]int
	events *EventLog
	seq    int
}

func NewBook(events *EventLog) *Book {
	return &Book{byID: make(map[string]int), oca: make(map[string][]int), events: events}
}

// Submit validates the intent and admits it to the arena. refPrice is the
// market price at submission time. The order becomes matchable only after the
// evaluation identified by evalSeq (no order may be matched against data its
// creator already saw).
func (b *Book) Submit(intent OrderIntent, refPrice float64, evalSeq int, ts int64) error {
	if err := intent.Validate(); err != nil {
		b.events.Append(Event{Ts: ts, Type: EventOrderReject, OrderID: intent.ID, Reason: err.Error()})
		return err
	}
	o := &bookOrder{
		intent:        intent,
		status:        OrderActive,
		seq:           b.seq,
		remaining:     intent.Qty,
		eligibleAfter: evalSeq,
		ref:           refPrice,
		trailPrice:    intent.StopPrice,
		trailActive:   intent.Kind != OrderTrailing || intent.TrailActivation == 0,
	}
	b.seq++
	b.orders = append(b.orders, o)
	b.byID[intent.ID] = len(b.orders) - 1
	if intent.OCAName != "" && intent.OCAPolicy != OCANone {
		b.oca[intent.OCAName] = append(b.oca[intent.OCAName], len(b.orders)-1)
	}
	b.events.Append(Event{Ts: ts, Type: EventOrderSubmit, OrderID: intent.ID, Qty: intent.Qty})
	return nil
}

// Cancel removes an active order. Returns false if the order is unknown or
// already terminal.
func (b *Book) Cancel(id string, ts int64) bool {
	idx, ok := b.byID[id]
	if !ok || b.orders[idx].status != OrderActive {
		return false
	}
	b.orders[idx].status = OrderCancelled
	b.events.Append(Event{Ts: ts, Type: EventOrderCancel, OrderID: id})
	return true
}

// Get returns the order's current status and remaining quantity.
func (b *Book) Get(id string) (OrderStatus, float64, bool) {
	idx, ok := b.byID[id]
	if !ok {
		return 0, 0, false
	}
	return b.orders[idx].status, b.orders[idx].remaining, true
}

// UpdateTrail moves a trailing stop's trigger price. The update is not a new
// order for sequencing purposes; the trigger only ratchets in the favorable
// direction (down never happens for a protective sell, up never for a buy).
func (b *Book) UpdateTrail(id string, price float64) {
	idx, ok := b.byID[id]
	if !ok {
		return
	}
	o := b.orders[idx]
	if o.status != OrderActive || o.intent.Kind != OrderTrailing {
		return
	}
	if o.intent.Side == TradeSideSell {
		o.trailPrice = maxf(o.trailPrice, price)
	} else {
		if o.trailPrice == 0 {
			o.trailPrice = price
		} else {
			o.trailPrice = minf(o.trailPrice, price)
		}
	}
}

// RewriteStop moves a resting stop's trigger price in place (the breakeven
// policy). The order keeps its identity and sequencing.
func (b *Book) RewriteStop(id string, price float64) {
	idx, ok := b.byID[id]
	if !ok {
		return
	}
	o := b.orders[idx]
	if o.status != OrderActive {
		return
	}
	switch o.intent.Kind {
	case OrderStop, OrderStopLimit:
		o.intent.StopPrice = price
	case OrderTrailing:
		o.trailPrice = price
	}
}

// ActivateTrail marks a trailing stop as live once its activation level has
// been reached.
func (b *Book) ActivateTrail(id string) {
	if idx, ok := b.byID[id]; ok {
		b.orders[idx].trailActive = true
	}
}

// TrailPrice exposes the current trigger of a trailing stop.
func (b *Book) TrailPrice(id string) (float64, bool) {
	idx, ok := b.byID[id]
	if !ok {
		return 0, false
	}
	return b.orders[idx].trailPrice, true
}

// ActiveCount returns the number of matchable orders.
func (b *Book) ActiveCount() int {
	n := 0
	for _, o := range b.orders {
		if o.status == OrderActive {
			n++
		}
	}
	return n
}

// fillPlan is a provisional fill located on the bar's assumed path.
type fillPlan struct {
	order *bookOrder
	dist  float64
	price float64
}

// plan locates the point on the path at which the order would fill, if any.
// floor restricts matching to the path at or beyond a distance already
// traversed (used when orders enter the book mid-bar). Market orders fill at
// the window open, ahead of any path touch; a market order admitted mid-bar
// fills at the window's end, the only price that is still live.
func (b *Book) plan(o *bookOrder, open float64, legs [3]pathLeg, floor float64) (fillPlan, bool) {
	in := o.intent
	switch in.Kind {
	case OrderMarket:
		if floor > 0 {
			return fillPlan{order: o, dist: pathTotal(legs), price: legs[2].to}, true
		}
		return fillPlan{order: o, dist: -1, price: open}, true

	case OrderLimit:
		return planLimit(o, in.Side, in.LimitPrice, open, legs, floor)

	case OrderStop:
		return planStop(o, in.Side, in.StopPrice, o.ref, open, legs, floor)

	case OrderTrailing:
		if !o.trailActive || o.trailPrice == 0 {
			return fillPlan{}, false
		}
		return planStop(o, in.Side, o.trailPrice, o.ref, open, legs, floor)

	case OrderStopLimit:
		armDist := floor
		if !o.armed {
			p, ok := planStop(o, in.Side, in.StopPrice, o.ref, open, legs, floor)
			if !ok {
				return fillPlan{}, false
			}
			armDist = maxf(p.dist, floor)
			// The instant the stop trips, the limit is working at the
			// trigger price; it fills right away if that price already
			// satisfies it.
			if satisfiesLimit(in.Side, in.LimitPrice, p.price) {
				return fillPlan{order: o, dist: armDist, price: p.price}, true
			}
		}
		return planLimit(o, in.Side, in.LimitPrice, open, legs, armDist)
	}
	return fillPlan{}, false
}

func satisfiesLimit(side TradeSide, limit, price float64) bool {
	if side == TradeSideBuy {
		return price <= limit
	}
	return price >= limit
}

// planLimit fills at the open when the bar opens through the limit, else at
// the limit price when the path first touches it at or after startDist.
func planLimit(o *bookOrder, side TradeSide, limit, open float64, legs [3]pathLeg, startDist float64) (fillPlan, bool) {
	if startDist <= 0 && satisfiesLimit(side, limit, open) {
		return fillPlan{order: o, dist: 0, price: open}, true
	}
	if d, ok := touchFrom(legs, limit, startDist); ok {
		return fillPlan{order: o, dist: d, price: limit}, true
	}
	return fillPlan{}, false
}

// planStop locates a stop trigger on the path. A stop sitting on the breakout
// side of its submission reference price can be gapped through: the bar opens
// already beyond it and the fill happens at the open. A stop on the other side
// of the reference cannot trigger by gapping and waits for a touch of its
// level.
func planStop(o *bookOrder, side TradeSide, stop, ref, open float64, legs [3]pathLeg, floor float64) (fillPlan, bool) {
	breakout := stop > ref
	through := open >= stop
	if side == TradeSideSell {
		breakout = stop < ref
		through = open <= stop
	}
	if floor <= 0 && breakout && through {
		return fillPlan{order: o, dist: 0, price: open}, true
	}
	if d, ok := touchFrom(legs, stop, floor); ok {
		return fillPlan{order: o, dist: d, price: stop}, true
	}
	return fillPlan{}, false
}

// MatchBar matches all eligible active orders against one confirmed bar (or
// the bar's sub-bar sequence when magnification data is present).
func (b *Book) MatchBar(bar Bar, barIndex, evalSeq int) []Fill {
	if len(bar.Subs) > 0 {
		return b.matchSubs(bar, barIndex, evalSeq)
	}
	fills, _ := b.MatchFrom(bar.Open, bar.High, bar.Low, bar.Close, bar.CloseTime, 0, barIndex, evalSeq)
	return fills
}

// MatchFrom matches one price window, considering only the assumed path at or
// beyond the given floor distance. It returns the fills plus the path
// distance of the last fill, letting a caller resume matching after admitting
// new orders mid-bar. Fills are applied in path order, submission order
// breaking ties; OCA invalidation is applied atomically with each triggering
// fill, so a sibling planned later on the same path never fills after its
// group is gone.
func (b *Book) MatchFrom(open, high, low, close float64, ts int64, floor float64, barIndex, evalSeq int) ([]Fill, float64) {
	legs := barPath(open, high, low, close)

	var plans []fillPlan
	for _, o := range b.orders {
		if o.status != OrderActive || o.eligibleAfter >= evalSeq {
			continue
		}
		if p, ok := b.plan(o, open, legs, floor); ok {
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].dist != plans[j].dist {
			return plans[i].dist < plans[j].dist
		}
		return plans[i].order.seq < plans[j].order.seq
	})

	var fills []Fill
	last := floor
	for _, p := range plans {
		o := p.order
		if o.status != OrderActive {
			continue // invalidated by an earlier fill's OCA group
		}
		qty := o.remaining
		o.status = OrderFilled
		o.remaining = 0
		f := Fill{OrderID: o.intent.ID, Side: o.intent.Side, Kind: o.intent.Kind, Price: p.price, Qty: qty, Time: ts, BarIndex: barIndex}
		fills = append(fills, f)
		last = maxf(last, p.dist)
		b.events.Append(Event{Ts: ts, Type: EventOrderFill, OrderID: o.intent.ID, Price: p.price, Qty: qty})
		b.applyOCA(o, qty, ts)
	}

	// Stop-limits whose stop tripped this window but whose limit stayed out
	// of reach become live limit orders for later bars.
	for _, o := range b.orders {
		if o.status != OrderActive || o.armed || o.intent.Kind != OrderStopLimit || o.eligibleAfter >= evalSeq {
			continue
		}
		if _, ok := planStop(o, o.intent.Side, o.intent.StopPrice, o.ref, open, legs, floor); ok {
			o.armed = true
		}
	}
	return fills, last
}

// CancelAllActive cancels every matchable order (forced liquidation or run
// teardown).
func (b *Book) CancelAllActive(ts int64) {
	for _, o := range b.orders {
		if o.status == OrderActive {
			o.status = OrderCancelled
			b.events.Append(Event{Ts: ts, Type: EventOrderCancel, OrderID: o.intent.ID})
		}
	}
}

// applyOCA enforces the group policy triggered by a fill, atomically with
// respect to further matching.
func (b *Book) applyOCA(filled *bookOrder, qty float64, ts int64) {
	name := filled.intent.OCAName
	if name == "" || filled.intent.OCAPolicy == OCANone {
		return
	}
	for _, idx := range b.oca[name] {
		sib := b.orders[idx]
		if sib == filled || sib.status != OrderActive {
			continue
		}
		switch filled.intent.OCAPolicy {
		case OCACancelAll:
			sib.status = OrderInvalidated
			b.events.Append(Event{Ts: ts, Type: EventOCAInvalidate, OrderID: sib.intent.ID, Reason: name})
		case OCAReduce:
			sib.remaining -= qty
			if sib.remaining <= 0 {
				sib.remaining = 0
				sib.status = OrderInvalidated
				b.events.Append(Event{Ts: ts, Type: EventOCAInvalidate, OrderID: sib.intent.ID, Reason: name})
			}
		}
	}
}

// GroupRemaining sums the remaining quantity across a reduce group's live
// members.
func (b *Book) GroupRemaining(name string) float64 {
	var sum float64
	for _, idx := range b.oca[name] {
		if b.orders[idx].status == OrderActive {
			sum += b.orders[idx].remaining
		}
	}
	return sum
}
