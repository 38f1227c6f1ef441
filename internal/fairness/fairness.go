// Package fairness maintains the per-worker idle-time accumulation and the
// EWMA fairness signal that the composite matching strategy scores against.
package fairness

import (
	"time"

	"github.com/crowdsim/crowdsim/pkg/types"
)

// DefaultGamma is the EWMA smoothing coefficient used when none is
// configured.
const DefaultGamma = 0.3

// Tracker updates worker idle counters each tick. One tracker serves a whole
// run; the smoothing coefficient is fixed at construction.
type Tracker struct {
	gamma float64
}

// NewTracker returns a tracker with the given smoothing coefficient γ.
// Values outside (0,1) fall back to DefaultGamma.
func NewTracker(gamma float64) *Tracker {
	if gamma <= 0 || gamma >= 1 {
		gamma = DefaultGamma
	}
	return &Tracker{gamma: gamma}
}

// Gamma returns the smoothing coefficient in use.
func (tr *Tracker) Gamma() float64 {
	return tr.gamma
}

// UpdateIdle accumulates idle time up to now for an available worker and
// recomputes the fairness signal as
//
//	fairness = (1−γ)·total_idle_seconds + γ·previous_fairness
//
// The coefficient weights the previous EWMA value against the current
// absolute cumulative idle seconds, not an idle delta; the recurrence is
// intentionally kept in that exact form. Whether the idle branch is taken or
// not, the state marker advances to now so the next call measures from here.
func (tr *Tracker) UpdateIdle(w *types.Worker, now time.Time) {
	if w.LastStateTS.IsZero() {
		w.LastStateTS = now
	}

	if w.Available && !now.Before(w.LastStateTS) {
		w.TotalIdle += now.Sub(w.LastStateTS)
		idleSec := w.TotalIdle.Seconds()
		w.Fairness = (1-tr.gamma)*idleSec + tr.gamma*w.Fairness
	}

	w.LastStateTS = now
}
