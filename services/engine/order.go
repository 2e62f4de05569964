package engine

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

type TradeSide int

const (
	TradeSideBuy TradeSide = iota
	TradeSideSell
)

func (s TradeSide) String() string {
	if s == TradeSideBuy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s TradeSide) Opposite() TradeSide {
	if s == TradeSideBuy {
		return TradeSideSell
	}
	return TradeSideBuy
}

// Sign returns +1 for buys and -1 for sells.
func (s TradeSide) Sign() float64 {
	if s == TradeSideBuy {
		return 1
	}
	return -1
}

type OrderKind int

const (
	OrderMarket OrderKind = iota
	OrderLimit
	OrderStop
	OrderStopLimit
	OrderTrailing
)

func (k OrderKind) String() string {
	switch k {
	case OrderMarket:
		return "market"
	case OrderLimit:
		return "limit"
	case OrderStop:
		return "stop"
	case OrderStopLimit:
		return "stop_limit"
	case OrderTrailing:
		return "trailing"
	}
	return "unknown"
}

// OCAPolicy controls what happens to sibling orders when one member of a
// one-cancels-all group fills.
type OCAPolicy int

const (
	OCANone OCAPolicy = iota
	// OCACancelAll invalidates every sibling once one member fills.
	OCACancelAll
	// OCAReduce decrements every sibling's remaining quantity by the filled
	// quantity, invalidating siblings whose remainder reaches zero.
	OCAReduce
)

// OrderIntent is a strategy's request to trade. Immutable after submission
// except for trailing-stop price updates re-issued each evaluation.
type OrderIntent struct {
	ID   string
	Side TradeSide
	Kind OrderKind
	Qty  float64

	LimitPrice float64
	StopPrice  float64

	// Trailing stop parameters. TrailActivation of zero means the trail is
	// live immediately.
	TrailOffset     float64
	TrailActivation float64

	OCAName   string
	OCAPolicy OCAPolicy

	// LinkedEntryID ties exit orders to the entry they protect.
	LinkedEntryID string

	// Immediate requests a fill at the current bar's close instead of the
	// next bar's open. Only meaningful for market orders.
	Immediate bool
}

// NewMarket builds a market order intent with a fresh ID.
func NewMarket(side TradeSide, qty float64) OrderIntent {
	return OrderIntent{ID: uuid.NewString(), Side: side, Kind: OrderMarket, Qty: qty}
}

// NewLimit builds a limit order intent.
func NewLimit(side TradeSide, qty, limit float64) OrderIntent {
	return OrderIntent{ID: uuid.NewString(), Side: side, Kind: OrderLimit, Qty: qty, LimitPrice: limit}
}

// NewStop builds a stop-market order intent.
func NewStop(side TradeSide, qty, stop float64) OrderIntent {
	return OrderIntent{ID: uuid.NewString(), Side: side, Kind: OrderStop, Qty: qty, StopPrice: stop}
}

// NewStopLimit builds a stop-limit order intent.
func NewStopLimit(side TradeSide, qty, stop, limit float64) OrderIntent {
	return OrderIntent{ID: uuid.NewString(), Side: side, Kind: OrderStopLimit, Qty: qty, StopPrice: stop, LimitPrice: limit}
}

// NewTrailing builds a trailing-stop order intent. The stop price is seeded
// from StopPrice and thereafter ratchets by TrailOffset behind the favorable
// extreme.
func NewTrailing(side TradeSide, qty, offset, activation float64) OrderIntent {
	return OrderIntent{ID: uuid.NewString(), Side: side, Kind: OrderTrailing, Qty: qty,
		TrailOffset: offset, TrailActivation: activation}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate rejects malformed intents before they reach the book. A rejected
// order is reported to the caller, never silently dropped.
func (o OrderIntent) Validate() error {
	if !(o.Qty > 0) || !finite(o.Qty) {
		return fmt.Errorf("%w: qty %v", ErrInvalidOrder, o.Qty)
	}
	switch o.Kind {
	case OrderLimit:
		if !finite(o.LimitPrice) || o.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit %v", ErrInvalidPrice, o.LimitPrice)
		}
	case OrderStop:
		if !finite(o.StopPrice) || o.StopPrice <= 0 {
			return fmt.Errorf("%w: stop %v", ErrInvalidPrice, o.StopPrice)
		}
	case OrderStopLimit:
		if !finite(o.StopPrice) || o.StopPrice <= 0 {
			return fmt.Errorf("%w: stop %v", ErrInvalidPrice, o.StopPrice)
		}
		if !finite(o.LimitPrice) || o.LimitPrice <= 0 {
			return fmt.Errorf("%w: limit %v", ErrInvalidPrice, o.LimitPrice)
		}
	case OrderTrailing:
		if !finite(o.TrailOffset) || o.TrailOffset <= 0 {
			return fmt.Errorf("%w: trail offset %v", ErrInvalidPrice, o.TrailOffset)
		}
		if o.TrailActivation != 0 && !finite(o.TrailActivation) {
			return fmt.Errorf("%w: trail activation %v", ErrInvalidPrice, o.TrailActivation)
		}
	}
	return nil
}

type OrderStatus int

const (
	OrderActive OrderStatus = iota
	OrderFilled
	OrderCancelled
	OrderInvalidated
)

func (s OrderStatus) String() string {
	switch s {
	case OrderActive:
		return "active"
	case OrderFilled:
		return "filled"
	case OrderCancelled:
		return "cancelled"
	case OrderInvalidated:
		return "invalidated"
	}
	return "unknown"
}

// Fill is a match between an order and bar price data. Produced only by the
// book; append-only.
type Fill struct {
	OrderID  string
	Side     TradeSide
	Kind     OrderKind
	Price    float64
	Qty      float64
	Fee      float64
	Time     int64
	BarIndex int
}
