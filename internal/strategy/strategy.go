// Package strategy provides the pluggable matching policies that pair active
// tasks with available workers each tick.
//
// Variants form a closed set selected through an explicit registration table
// at construction — no string-keyed lazy loading, no import side effects. Any
// randomness a strategy uses comes from the seeded source threaded in at
// construction, so identical seed and configuration reproduce an identical
// assignment sequence.
package strategy

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/crowdsim/crowdsim/internal/fairness"
	"github.com/crowdsim/crowdsim/internal/geo"
	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// Strategy names accepted by New.
const (
	NameNearestFeasible   = "greedy"
	NameCompositeFairness = "composite"
)

// ErrUnknownStrategy is returned for a name outside the registration table —
// a configuration error, fatal at startup.
var ErrUnknownStrategy = errors.New("unknown matching strategy")

// Params carries the tunable weights shared by the strategies. Zero values
// are replaced by the documented defaults in Normalize.
type Params struct {
	Lambda1       float64 // fairness weight
	Lambda2       float64 // starvation weight
	Lambda3       float64 // utility weight
	Gamma         float64 // EWMA smoothing coefficient
	K             int     // candidate narrowing size; <= 0 means unlimited
	SoftThreshold float64 // minimum acceptable composite score
	ScoreFilter   float64 // near-optimal band ratio
}

// DefaultParams returns the canonical parameter set.
func DefaultParams() Params {
	return Params{
		Lambda1:       1.0,
		Lambda2:       1.0,
		Lambda3:       0.5,
		Gamma:         fairness.DefaultGamma,
		K:             15,
		SoftThreshold: 4.0,
		ScoreFilter:   0.8,
	}
}

// Normalize fills unset fields with their defaults. K is left alone: zero and
// negative values mean "no narrowing".
func (p Params) Normalize() Params {
	def := DefaultParams()
	if p.Lambda1 == 0 {
		p.Lambda1 = def.Lambda1
	}
	if p.Lambda2 == 0 {
		p.Lambda2 = def.Lambda2
	}
	if p.Lambda3 == 0 {
		p.Lambda3 = def.Lambda3
	}
	if p.Gamma <= 0 || p.Gamma >= 1 {
		p.Gamma = def.Gamma
	}
	if p.SoftThreshold == 0 {
		p.SoftThreshold = def.SoftThreshold
	}
	if p.ScoreFilter == 0 {
		p.ScoreFilter = def.ScoreFilter
	}
	return p
}

// Strategy produces the assignments for one tick. Implementations read the
// active/available pools, commit pairings through the pool manager, and
// return the decisions in commit order.
type Strategy interface {
	Name() string
	Assign(pools *pool.Manager, now time.Time) ([]types.Assignment, error)
}

// registry is the closed set of built-in variants. New variants are added
// here, not discovered.
var registry = map[string]func(Params, *rand.Rand) Strategy{
	NameNearestFeasible: func(p Params, _ *rand.Rand) Strategy {
		return &NearestFeasible{}
	},
	NameCompositeFairness: func(p Params, rng *rand.Rand) Strategy {
		return &CompositeFairness{params: p, rng: rng}
	},
}

// New builds the named strategy with normalized parameters and the given
// seeded random source.
func New(name string, params Params, rng *rand.Rand) (Strategy, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return build(params.Normalize(), rng), nil
}

// commit records the distance and clock bookkeeping on the task and moves the
// pair into the assigned pools. Shared by both strategies.
func commit(pools *pool.Manager, t *types.Task, w *types.Worker, now time.Time, pickupKm, dropKm float64) error {
	t.PickupKm = pickupKm
	t.DropKm = dropKm
	t.StartTime = now
	t.FinishTime = geo.FinishETA(now, pickupKm, dropKm)
	return pools.Assign(t, w)
}
