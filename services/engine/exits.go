package engine

import "fmt"

// ScaleLevel is one take-profit rung of a scaled exit.
type ScaleLevel struct {
	Price float64
	Qty   float64
}

// ExitSpec is the high-level exit description a strategy attaches to an
// entry. The manager translates it into linked orders and keeps them in step
// with the entry's remaining size.
type ExitSpec struct {
	EntryID string

	// Stop and Limit form a bracket; filling either invalidates the other.
	Stop  float64
	Limit float64

	// TrailOffset turns the stop into a trailing stop seeded at Stop.
	TrailOffset     float64
	TrailActivation float64

	// Breakeven moves the stop to the entry price once price has traveled
	// this far in the favorable direction. Zero disables.
	Breakeven float64

	// TimeoutMs closes the entry unconditionally at the first evaluation at
	// or after entry time + timeout. Zero disables.
	TimeoutMs int64

	// Scales are partial take-profits sharing the stop through a reduce
	// group. Their quantities must not exceed the entry's quantity.
	Scales []ScaleLevel
}

type exitState struct {
	spec       ExitSpec
	built      bool
	builtQty   float64
	initialQty float64 // entry quantity at first build; fixes consumed scale levels
	stopID     string
	limitID    string
	scaleIDs   []string
	beDone     bool
	timedOut   bool

	// trailSeed carries the accumulated ratchet across rebuilds; the trigger
	// of a trailing stop never retreats when the group is resynchronized.
	trailSeed float64
	trailLive bool
}

// ExitManager owns the translation from exit specs to linked order groups:
// brackets as per-entry cancel-all pairs, scaled exits as reduce groups with
// a shared stop, plus the trailing, breakeven and timeout policies layered on
// top.
type ExitManager struct {
	book   *Book
	ledger *Ledger
	states map[string]*exitState
	order  []string // deterministic iteration over states
}

func NewExitManager(book *Book, ledger *Ledger) *ExitManager {
	return &ExitManager{book: book, ledger: ledger, states: make(map[string]*exitState)}
}

// Set installs (or replaces) the exit specification for an entry.
func (m *ExitManager) Set(spec ExitSpec) error {
	if spec.EntryID == "" {
		return fmt.Errorf("%w: exit spec without entry id", ErrInvalidOrder)
	}
	var scaleSum float64
	for _, s := range spec.Scales {
		if s.Qty <= 0 || !finite(s.Price) || s.Price <= 0 {
			return fmt.Errorf("%w: scale level %+v", ErrInvalidOrder, s)
		}
		scaleSum += s.Qty
	}
	if qty := m.ledger.OpenQtyFor(spec.EntryID); qty > 0 && scaleSum > qty {
		return fmt.Errorf("%w: scale quantities %.8g exceed entry quantity %.8g", ErrInvalidOrder, scaleSum, qty)
	}
	if old, ok := m.states[spec.EntryID]; ok {
		m.teardown(old, 0)
	} else {
		m.order = append(m.order, spec.EntryID)
	}
	m.states[spec.EntryID] = &exitState{spec: spec}
	return nil
}

// Sync reconciles exit orders with the current position. Called once per
// evaluation, after fills for the bar have been applied. Returned intents are
// unconditional closes (timeouts, resyncs) the engine must execute at the
// current close.
func (m *ExitManager) Sync(bar Bar, now int64, evalSeq int) []OrderIntent {
	var immediates []OrderIntent
	for _, entryID := range m.order {
		st, ok := m.states[entryID]
		if !ok {
			continue
		}
		qty := m.ledger.OpenQtyFor(entryID)
		if qty == 0 {
			// Never built means the entry is still pending; keep waiting.
			// Built and now flat means the entry is done.
			if st.built {
				m.teardown(st, now)
				delete(m.states, entryID)
			}
			continue
		}
		entry, _ := m.ledger.EntryFor(entryID)
		long := entry.Qty > 0

		if st.spec.TimeoutMs > 0 && !st.timedOut && now-entry.EntryTime >= st.spec.TimeoutMs {
			st.timedOut = true
			m.teardown(st, now)
			delete(m.states, entryID)
			close := NewMarket(exitSide(long), qty)
			close.LinkedEntryID = entryID
			close.Immediate = true
			immediates = append(immediates, close)
			continue
		}

		if st.built && st.builtQty != qty {
			// Entry size changed outside this group; rebuild to match, keeping
			// the trailing ratchet accumulated by the torn-down order.
			if st.stopID != "" && st.spec.TrailOffset > 0 {
				if p, ok := m.book.TrailPrice(st.stopID); ok && p != 0 {
					st.trailSeed = p
				}
			}
			m.teardown(st, now)
			st.built = false
		}
		if !st.built {
			m.build(st, entry, qty, evalSeq, now)
		}
		m.updateTrail(st, bar, long)
		m.applyBreakeven(st, bar, entry, long)
	}
	// Drop tombstones from the iteration order.
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.states[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return immediates
}

func exitSide(long bool) TradeSide {
	if long {
		return TradeSideSell
	}
	return TradeSideBuy
}

func (m *ExitManager) build(st *exitState, entry Trade, qty float64, evalSeq int, now int64) {
	spec := st.spec
	side := exitSide(entry.Qty > 0)
	ref := entry.EntryPrice
	if st.initialQty == 0 {
		st.initialQty = qty
	}

	if len(spec.Scales) > 0 {
		group := "scale:" + spec.EntryID
		if spec.Stop > 0 || spec.TrailOffset > 0 {
			stop := m.stopIntent(st, side, qty)
			stop.OCAName, stop.OCAPolicy = group, OCAReduce
			stop.LinkedEntryID = spec.EntryID
			if m.book.Submit(stop, ref, evalSeq, now) == nil {
				st.stopID = stop.ID
				if st.trailLive {
					m.book.ActivateTrail(stop.ID)
				}
			}
		}
		// Rebuilds after a partial exit place only the levels not yet
		// consumed, trimming the level a partial fill stopped inside of.
		consumed := st.initialQty - qty
		st.scaleIDs = st.scaleIDs[:0]
		for _, lvl := range spec.Scales {
			lvlQty := lvl.Qty
			if consumed >= lvlQty {
				consumed -= lvlQty
				continue
			}
			lvlQty -= consumed
			consumed = 0
			o := NewLimit(side, lvlQty, lvl.Price)
			o.OCAName, o.OCAPolicy = group, OCAReduce
			o.LinkedEntryID = spec.EntryID
			if m.book.Submit(o, ref, evalSeq, now) == nil {
				st.scaleIDs = append(st.scaleIDs, o.ID)
			}
		}
	} else {
		group := "exit:" + spec.EntryID
		if spec.Stop > 0 || spec.TrailOffset > 0 {
			stop := m.stopIntent(st, side, qty)
			stop.OCAName, stop.OCAPolicy = group, OCACancelAll
			stop.LinkedEntryID = spec.EntryID
			if m.book.Submit(stop, ref, evalSeq, now) == nil {
				st.stopID = stop.ID
				if st.trailLive {
					m.book.ActivateTrail(stop.ID)
				}
			}
		}
		if spec.Limit > 0 {
			lim := NewLimit(side, qty, spec.Limit)
			lim.OCAName, lim.OCAPolicy = group, OCACancelAll
			lim.LinkedEntryID = spec.EntryID
			if m.book.Submit(lim, ref, evalSeq, now) == nil {
				st.limitID = lim.ID
			}
		}
	}
	st.built = true
	st.builtQty = qty
}

func (m *ExitManager) stopIntent(st *exitState, side TradeSide, qty float64) OrderIntent {
	spec := st.spec
	if spec.TrailOffset > 0 {
		o := NewTrailing(side, qty, spec.TrailOffset, spec.TrailActivation)
		o.StopPrice = mergeTrailSeed(side, spec.Stop, st.trailSeed)
		return o
	}
	return NewStop(side, qty, spec.Stop)
}

// mergeTrailSeed combines the spec's seed with a ratchet carried over from a
// rebuilt order, always keeping the more favorable trigger.
func mergeTrailSeed(side TradeSide, seed, carried float64) float64 {
	if carried == 0 {
		return seed
	}
	if side == TradeSideSell {
		return maxf(seed, carried)
	}
	if seed == 0 {
		return carried
	}
	return minf(seed, carried)
}

// updateTrail recomputes the trailing trigger from the evaluated bar's
// favorable extreme. The book only ever moves the trigger in the favorable
// direction, and the update is not a new order for sequencing purposes.
func (m *ExitManager) updateTrail(st *exitState, bar Bar, long bool) {
	if st.spec.TrailOffset <= 0 || st.stopID == "" {
		return
	}
	if st.spec.TrailActivation > 0 {
		reached := long && bar.High >= st.spec.TrailActivation ||
			!long && bar.Low <= st.spec.TrailActivation
		if reached {
			st.trailLive = true
			m.book.ActivateTrail(st.stopID)
		}
	}
	if long {
		m.book.UpdateTrail(st.stopID, bar.High-st.spec.TrailOffset)
	} else {
		m.book.UpdateTrail(st.stopID, bar.Low+st.spec.TrailOffset)
	}
}

// applyBreakeven rewrites the stop to the entry price once the threshold is
// crossed. The rewrite happens at most once per entry.
func (m *ExitManager) applyBreakeven(st *exitState, bar Bar, entry Trade, long bool) {
	if st.spec.Breakeven <= 0 || st.beDone || st.stopID == "" {
		return
	}
	crossed := long && bar.High >= entry.EntryPrice+st.spec.Breakeven ||
		!long && bar.Low <= entry.EntryPrice-st.spec.Breakeven
	if !crossed {
		return
	}
	st.beDone = true
	if st.spec.TrailOffset > 0 {
		m.book.UpdateTrail(st.stopID, entry.EntryPrice)
	} else {
		m.book.RewriteStop(st.stopID, entry.EntryPrice)
	}
}

func (m *ExitManager) teardown(st *exitState, now int64) {
	if st.stopID != "" {
		m.book.Cancel(st.stopID, now)
	}
	if st.limitID != "" {
		m.book.Cancel(st.limitID, now)
	}
	for _, id := range st.scaleIDs {
		m.book.Cancel(id, now)
	}
	st.stopID, st.limitID, st.scaleIDs = "", "", nil
}
