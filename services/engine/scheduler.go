package engine

import (
	"context"

	"go.uber.org/zap"
)

// Config is the engine's recognized option surface. A run is fully
// reproducible from its feed and this configuration; no state persists
// between runs.
type Config struct {
	Symbol      string
	InitialCash float64

	// ProcessOrdersOnClose fills market orders at the close of the bar that
	// produced them instead of the next bar's open.
	ProcessOrdersOnClose bool

	// CalcOnEveryTick re-evaluates the strategy on every realtime snapshot
	// instead of only at bar close. This changes order timing relative to
	// the close-driven default and is a documented repainting source.
	CalcOnEveryTick bool

	CloseEntriesRule CloseRule
	Margin           MarginConfig
	Fees             FeeModel
	Slippage         SlippageModel
	Filters          SymbolFilters
}

func (c Config) withDefaults() Config {
	if c.InitialCash == 0 {
		c.InitialCash = 100_000
	}
	if c.Fees == nil {
		c.Fees = NoFee{}
	}
	if c.Slippage == nil {
		c.Slippage = NoSlippage{}
	}
	return c
}

// Strategy is the engine's callback into trading logic. Evaluate is invoked
// once per evaluation and must be a pure function of the evaluation's exposed
// state plus the persistent variable store; anything else it computes is
// scratch and will not survive a rollback.
type Strategy interface {
	Name() string
	// Warmup is the number of bars to observe before the first evaluation.
	Warmup() int
	Evaluate(ev *Evaluation) error
}

// Evaluation is one invocation of the strategy logic. Bars holds the
// confirmed history window; Bar is the bar being evaluated, which for
// intrabar re-evaluations is a forming snapshot not yet present in Bars.
type Evaluation struct {
	Bars     []Bar
	Index    int
	Bar      Bar
	Realtime bool
	Ledger   LedgerView
	Vars     *Vars

	intents []OrderIntent
	exits   []ExitSpec
}

// Submit queues an order intent for processing after the evaluation returns.
func (ev *Evaluation) Submit(o OrderIntent) { ev.intents = append(ev.intents, o) }

// Exit installs a high-level exit specification for an entry order.
func (ev *Evaluation) Exit(spec ExitSpec) { ev.exits = append(ev.exits, spec) }

// Close queues an immediate market close of the given quantity.
func (ev *Evaluation) Close(side TradeSide, qty float64) {
	o := NewMarket(side, qty)
	o.Immediate = true
	ev.Submit(o)
}

// Engine replays a bar feed against one strategy: single-threaded,
// evaluations strictly ordered by bar time then tick order. Independent runs
// own independent engines and share nothing.
type Engine struct {
	cfg    Config
	log    *zap.Logger
	events *EventLog
	book   *Book
	ledger *Ledger
	exits  *ExitManager
	vars   *Vars

	bars     []Bar
	barIndex int
	evalSeq  int
	fills    []Fill

	curOpen      int64
	curConfirmed bool
	curSnapshot  Bar
	haveCur      bool

	// curFloor is the path distance of the forming bar already traversed by
	// earlier snapshots. Matching never revisits it: an order admitted mid-bar
	// must not fill on movement that predates it.
	curFloor float64
}

func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	events := &EventLog{}
	book := NewBook(events)
	ledger := NewLedger(cfg.Symbol, cfg.InitialCash, cfg.CloseEntriesRule, events)
	return &Engine{
		cfg:      cfg,
		log:      log,
		events:   events,
		book:     book,
		ledger:   ledger,
		exits:    NewExitManager(book, ledger),
		vars:     NewVars(),
		barIndex: -1,
	}
}

func (e *Engine) Events() *EventLog { return e.events }
func (e *Engine) Ledger() *Ledger   { return e.ledger }
func (e *Engine) Book() *Book       { return e.book }
func (e *Engine) Fills() []Fill     { return e.fills }
func (e *Engine) Bars() []Bar       { return e.bars }

// Run consumes the feed to exhaustion. Cancellation is cooperative and only
// observed between evaluations; a cancelled run emits no further fills.
// Recoverable order rejections never stop the run; a FaultError or
// FeedGapError halts it immediately with the ledger in its last consistent
// state.
func (e *Engine) Run(ctx context.Context, feed Feed, strat Strategy) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		bar, ok, err := feed.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.consume(bar, strat); err != nil {
			return err
		}
	}
}

func (e *Engine) consume(bar Bar, strat Strategy) error {
	newOpen := !e.haveCur || bar.OpenTime != e.curOpen
	if newOpen {
		// A forming bar abandoned without confirmation closes as-is.
		if e.haveCur && !e.curConfirmed {
			final := e.curSnapshot
			final.Historical = true
			if err := e.closeBar(final, strat); err != nil {
				return err
			}
		}
		if len(e.bars) > 0 {
			prev := e.bars[len(e.bars)-1]
			if bar.OpenTime != prev.CloseTime {
				return &FeedGapError{Symbol: e.cfg.Symbol, PrevClose: prev.CloseTime, NextOpen: bar.OpenTime}
			}
		}
		e.curOpen = bar.OpenTime
		e.curConfirmed = false
		e.haveCur = true
		e.curFloor = 0
	} else if e.curConfirmed {
		// Confirmed bars are immutable; a late update is a feed defect.
		return &FeedGapError{Symbol: e.cfg.Symbol, PrevClose: e.curOpen, NextOpen: bar.OpenTime}
	}

	if bar.Historical {
		e.curConfirmed = true
		return e.closeBar(bar, strat)
	}
	e.curSnapshot = bar
	return e.tick(bar, strat)
}

// closeBar runs the full bar-close sequence: match resting orders along the
// bar's path, reconcile exits (which may admit orders that fill later on the
// same path), evaluate the strategy on the confirmed bar, and mark equity.
func (e *Engine) closeBar(bar Bar, strat Strategy) error {
	e.bars = append(e.bars, bar)
	e.barIndex = len(e.bars) - 1
	e.evalSeq++

	e.matchAndSync(bar)

	if e.cfg.Margin.liquidated(e.ledger, bar.Close) {
		e.liquidate(bar)
	}

	e.vars.rollback()
	if err := e.evaluate(bar, false, strat); err != nil {
		return err
	}
	e.vars.commit()

	// Exit specs installed by this evaluation become resting orders now, so
	// they are live from the very next bar's open.
	e.runExitSync(bar)

	e.ledger.Mark(bar.CloseTime, bar.Close)
	return nil
}

// tick handles one realtime snapshot. In the default close-only mode the
// snapshot is ignored entirely: orders match only against the confirmed bar,
// which keeps live and historical replays identical. In per-tick mode the
// book matches the developing bar and the strategy re-evaluates after a
// rollback.
func (e *Engine) tick(bar Bar, strat Strategy) error {
	if !e.cfg.CalcOnEveryTick {
		return nil
	}
	e.evalSeq++
	e.matchAndSync(bar)
	e.vars.rollback()
	if err := e.evaluate(bar, true, strat); err != nil {
		return err
	}
	e.runExitSync(bar)
	return nil
}

// matchAndSync alternates matching and exit reconciliation until the bar's
// path yields no further fills. Orders admitted mid-bar, whether by the exit
// manager or by an intrabar evaluation on an earlier snapshot, only match the
// path at or beyond the point already traversed.
func (e *Engine) matchAndSync(bar Bar) {
	if len(bar.Subs) > 0 {
		for _, sb := range bar.Subs {
			e.matchWindowFixpoint(bar, sb.Open, sb.High, sb.Low, sb.Close, sb.Ts, 0)
		}
		e.runExitSync(bar)
		return
	}
	e.matchWindowFixpoint(bar, bar.Open, bar.High, bar.Low, bar.Close, bar.CloseTime, e.curFloor)
	e.curFloor = maxf(e.curFloor, pathTotal(barPath(bar.Open, bar.High, bar.Low, bar.Close)))
	e.runExitSync(bar)
}

func (e *Engine) matchWindowFixpoint(bar Bar, open, high, low, close float64, ts int64, floor float64) {
	for {
		fills, last := e.book.MatchFrom(open, high, low, close, ts, floor, e.barIndex, e.evalSeq)
		if len(fills) == 0 {
			return
		}
		for _, f := range fills {
			e.applyFill(f)
		}
		floor = last
		e.runExitSync(bar)
	}
}

// runExitSync reconciles exit orders and executes any unconditional closes it
// produced (timeouts). Exit orders are admitted eligible for the current
// bar, since they protect entries that already exist.
func (e *Engine) runExitSync(bar Bar) {
	immediates := e.exits.Sync(bar, bar.CloseTime, e.evalSeq-1)
	for _, o := range immediates {
		e.fillAt(o, bar.Close, bar.CloseTime)
	}
}

// applyFill applies slippage and fees and folds the fill into the ledger.
// Limit-kind fills keep their price: slippage never makes a limit fill worse
// than its limit.
func (e *Engine) applyFill(f Fill) {
	if f.Kind == OrderMarket || f.Kind == OrderStop || f.Kind == OrderTrailing {
		f.Price = e.cfg.Slippage.Adjust(f.Side, f.Price)
	}
	f.Fee = e.cfg.Fees.Fee(f.Side, f.Price, f.Qty)
	e.fills = append(e.fills, f)
	e.ledger.Apply(f)
	e.log.Debug("fill",
		zap.String("order", f.OrderID),
		zap.String("side", f.Side.String()),
		zap.Float64("price", f.Price),
		zap.Float64("qty", f.Qty))
}

// fillAt executes an intent immediately at the given price (market-on-close
// and forced closes).
func (e *Engine) fillAt(o OrderIntent, price float64, ts int64) {
	f := Fill{OrderID: o.ID, Side: o.Side, Kind: o.Kind, Price: price, Qty: o.Qty, Time: ts, BarIndex: e.barIndex}
	e.events.Append(Event{Ts: ts, Type: EventOrderFill, OrderID: o.ID, Price: price, Qty: o.Qty})
	e.applyFill(f)
}

func (e *Engine) liquidate(bar Bar) {
	pos := e.ledger.Position()
	if pos.Qty == 0 {
		return
	}
	e.book.CancelAllActive(bar.CloseTime)
	side := TradeSideSell
	if pos.Qty < 0 {
		side = TradeSideBuy
	}
	e.events.Append(Event{Ts: bar.CloseTime, Type: EventLiquidation, Symbol: e.cfg.Symbol, Price: bar.Close, Qty: pos.Qty})
	e.log.Warn("forced liquidation",
		zap.Float64("qty", pos.Qty),
		zap.Float64("mark", bar.Close))
	o := NewMarket(side, absf(pos.Qty))
	e.fillAt(o, bar.Close, bar.CloseTime)
}

func (e *Engine) evaluate(bar Bar, realtime bool, strat Strategy) error {
	index := e.barIndex
	if realtime {
		index = len(e.bars)
	}
	if index+1 < strat.Warmup() {
		return nil
	}
	ev := &Evaluation{
		Bars:     e.bars,
		Index:    index,
		Bar:      bar,
		Realtime: realtime,
		Ledger:   e.ledger.View(),
		Vars:     e.vars,
	}
	if err := strat.Evaluate(ev); err != nil {
		return &FaultError{BarIndex: index, Time: bar.CloseTime, Err: err}
	}
	for _, intent := range ev.intents {
		e.submitIntent(intent, bar)
	}
	for _, spec := range ev.exits {
		if err := e.exits.Set(spec); err != nil {
			e.events.Append(Event{Ts: bar.CloseTime, Type: EventOrderReject, OrderID: spec.EntryID, Reason: err.Error()})
			e.log.Warn("exit spec rejected", zap.String("entry", spec.EntryID), zap.Error(err))
		}
	}
	return nil
}

// submitIntent validates, rounds, margin-checks and routes one intent.
// Rejections are recoverable: the order is reported and dropped, the run
// continues.
func (e *Engine) submitIntent(o OrderIntent, bar Bar) {
	o.LimitPrice, o.Qty = e.cfg.Filters.Apply(o.LimitPrice, o.Qty)
	o.StopPrice, _ = e.cfg.Filters.Apply(o.StopPrice, 0)

	if err := o.Validate(); err != nil {
		e.events.Append(Event{Ts: bar.CloseTime, Type: EventOrderReject, OrderID: o.ID, Reason: err.Error()})
		e.log.Warn("order rejected", zap.String("order", o.ID), zap.Error(err))
		return
	}
	if err := e.cfg.Margin.checkMargin(e.ledger, o, bar.Close); err != nil {
		e.events.Append(Event{Ts: bar.CloseTime, Type: EventOrderReject, OrderID: o.ID, Reason: err.Error()})
		e.log.Warn("order rejected", zap.String("order", o.ID), zap.Error(err))
		return
	}
	if o.Kind == OrderMarket && (o.Immediate || e.cfg.ProcessOrdersOnClose) {
		e.fillAt(o, bar.Close, bar.CloseTime)
		return
	}
	_ = e.book.Submit(o, bar.Close, e.evalSeq, bar.CloseTime)
}
