package engine

// Vars is the engine-owned store for a strategy's persistent state. Two
// lifetimes exist:
//
//   - run-scoped: survives across bars. Writes made during an intrabar
//     re-evaluation are rolled back before the next re-evaluation and only
//     commit when the bar closes.
//   - bar-scoped: survives intrabar re-evaluations of the same bar and is
//     cleared when the bar closes.
//
// Everything else a strategy computes during an evaluation is scratch state
// and is discarded by construction, since each evaluation re-runs from these
// stores alone.
type Vars struct {
	run       map[string]any
	committed map[string]any
	bar       map[string]any
}

func NewVars() *Vars {
	return &Vars{
		run:       make(map[string]any),
		committed: make(map[string]any),
		bar:       make(map[string]any),
	}
}

// Run reads a run-scoped variable.
func (v *Vars) Run(key string) (any, bool) {
	val, ok := v.run[key]
	return val, ok
}

// SetRun writes a run-scoped variable. The write is provisional until the
// current bar closes.
func (v *Vars) SetRun(key string, val any) { v.run[key] = val }

// Bar reads a bar-scoped variable.
func (v *Vars) Bar(key string) (any, bool) {
	val, ok := v.bar[key]
	return val, ok
}

// SetBar writes a bar-scoped variable.
func (v *Vars) SetBar(key string, val any) { v.bar[key] = val }

// RunFloat reads a run-scoped float with a default.
func (v *Vars) RunFloat(key string, def float64) float64 {
	if val, ok := v.run[key]; ok {
		if f, ok := val.(float64); ok {
			return f
		}
	}
	return def
}

// rollback discards provisional run-scoped writes, restoring the state
// committed at the last bar close. Bar-scoped values survive.
func (v *Vars) rollback() {
	v.run = make(map[string]any, len(v.committed))
	for k, val := range v.committed {
		v.run[k] = val
	}
}

// commit fixes the run-scoped state at bar close and clears bar-scoped
// values.
func (v *Vars) commit() {
	v.committed = make(map[string]any, len(v.run))
	for k, val := range v.run {
		v.committed[k] = val
	}
	v.bar = make(map[string]any)
}
