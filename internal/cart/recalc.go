package cart

import (
	"context"
	"sync"
)

// RecalcState tracks where a cart sits in its pricing refresh cycle.
type RecalcState int

const (
	// RecalcIdle means totals reflect the current lines and adjustments.
	RecalcIdle RecalcState = iota
	// RecalcDirty means a mutation happened and a pass is owed.
	RecalcDirty
	// Recalculating means a full pass is in flight.
	Recalculating
)

func (s RecalcState) String() string {
	switch s {
	case RecalcDirty:
		return "dirty"
	case Recalculating:
		return "recalculating"
	default:
		return "idle"
	}
}

// Recalculator serialises full pricing passes for a cart. Every mutation
// marks it dirty; Run drains dirtiness with complete passes so totals are
// never left stale, even when mutations land mid-pass.
type Recalculator struct {
	mu    sync.Mutex
	state RecalcState
}

// MarkDirty records that a mutation invalidated the current totals.
func (r *Recalculator) MarkDirty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RecalcIdle {
		r.state = RecalcDirty
	} else if r.state == Recalculating {
		// remembered so Run performs another pass after the current one
		r.state = RecalcDirty
	}
}

// State returns the current cycle state.
func (r *Recalculator) State() RecalcState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run executes full passes until no dirtiness remains. A pass failure leaves
// the recalculator dirty so the next mutation retries.
func (r *Recalculator) Run(ctx context.Context, pass func(context.Context) error) error {
	for {
		r.mu.Lock()
		if r.state != RecalcDirty {
			r.mu.Unlock()
			return nil
		}
		r.state = Recalculating
		r.mu.Unlock()

		if err := pass(ctx); err != nil {
			r.mu.Lock()
			r.state = RecalcDirty
			r.mu.Unlock()
			return err
		}

		r.mu.Lock()
		if r.state == Recalculating {
			r.state = RecalcIdle
			r.mu.Unlock()
			return nil
		}
		// re-dirtied mid-pass, go around again
		r.mu.Unlock()
	}
}
