package strategy

import (
	"time"

	"github.com/crowdsim/crowdsim/internal/geo"
	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// NearestFeasible is the greedy baseline: each active task, in pool order,
// takes the feasible available worker with the minimum pickup distance.
// Tasks are processed sequentially, so an earlier task consumes a worker
// before a later task in the same tick sees it — O(tasks×workers), not a
// global optimum.
type NearestFeasible struct{}

// Name implements Strategy.
func (s *NearestFeasible) Name() string { return NameNearestFeasible }

// Assign implements Strategy. The first-found minimum wins ties; there is no
// randomization anywhere in this variant.
func (s *NearestFeasible) Assign(pools *pool.Manager, now time.Time) ([]types.Assignment, error) {
	var assignments []types.Assignment

	for _, t := range pools.ActiveTasks() {
		dropKm := geo.DropKm(t)

		var best *types.Worker
		bestKm := 0.0
		for _, w := range pools.AvailableWorkers() {
			pickKm := geo.PickupKm(w, t)
			eta := geo.FinishETA(now, pickKm, dropKm)
			if !geo.FeasibleETA(w, t, eta) {
				continue
			}
			if best == nil || pickKm < bestKm {
				best, bestKm = w, pickKm
			}
		}
		if best == nil {
			// No feasible candidate this tick: the task stays active and is
			// re-evaluated later.
			continue
		}

		if err := commit(pools, t, best, now, bestKm, dropKm); err != nil {
			return nil, err
		}
		assignments = append(assignments, types.Assignment{
			TaskID:   t.ID,
			WorkerID: best.ID,
			Metric:   bestKm,
		})
	}

	return assignments, nil
}
