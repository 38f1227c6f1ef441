package strategy

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/crowdsim/crowdsim/internal/geo"
	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// CompositeFairness scores candidates on a weighted blend of the worker's
// fairness signal, the task's age, and the pickup proximity, then picks the
// least-served worker from the near-optimal band. Tasks whose best score
// falls below the soft threshold are deferred rather than forced; the log-age
// term grows monotonically, so deferral resolves instead of starving.
type CompositeFairness struct {
	params Params
	rng    *rand.Rand
}

type candidate struct {
	worker   *types.Worker
	pickupKm float64
	score    float64
	terms    types.ScoreTerms
}

// Name implements Strategy.
func (s *CompositeFairness) Name() string { return NameCompositeFairness }

// Assign implements Strategy. Tasks are processed sequentially in pool order,
// so earlier tasks consume workers before later ones in the same tick.
func (s *CompositeFairness) Assign(pools *pool.Manager, now time.Time) ([]types.Assignment, error) {
	var assignments []types.Assignment

	for _, t := range pools.ActiveTasks() {
		dropKm := geo.DropKm(t)

		// Phase 1: feasibility filter, then keep the k nearest by pickup
		// distance. k <= 0 disables the narrowing.
		var cands []candidate
		for _, w := range pools.AvailableWorkers() {
			pickKm := geo.PickupKm(w, t)
			eta := geo.FinishETA(now, pickKm, dropKm)
			if !geo.FeasibleETA(w, t, eta) {
				continue
			}
			cands = append(cands, candidate{worker: w, pickupKm: pickKm})
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool {
			return cands[i].pickupKm < cands[j].pickupKm
		})
		if s.params.K > 0 && len(cands) > s.params.K {
			cands = cands[:s.params.K]
		}

		// Phase 2: composite scoring.
		ageSec := now.Sub(t.ReleaseTime).Seconds()
		maxScore := math.Inf(-1)
		for i := range cands {
			c := &cands[i]
			c.terms = types.ScoreTerms{
				Fairness:   s.params.Lambda1 * c.worker.Fairness,
				Starvation: s.params.Lambda2 * math.Log(1+ageSec),
				Utility:    s.params.Lambda3 * (1 / (1 + c.pickupKm)),
			}
			c.score = c.terms.Fairness + c.terms.Starvation + c.terms.Utility
			if c.score > maxScore {
				maxScore = c.score
			}
		}

		// Below the soft threshold the task is deferred this tick.
		if maxScore < s.params.SoftThreshold {
			continue
		}

		// Near-optimal band, then fewest completions, then seeded random.
		band := cands[:0]
		for _, c := range cands {
			if c.score >= s.params.ScoreFilter*maxScore {
				band = append(band, c)
			}
		}
		chosen := s.pickLeastServed(band)

		if err := commit(pools, t, chosen.worker, now, chosen.pickupKm, dropKm); err != nil {
			return nil, err
		}
		terms := chosen.terms
		assignments = append(assignments, types.Assignment{
			TaskID:   t.ID,
			WorkerID: chosen.worker.ID,
			Metric:   chosen.score,
			Terms:    &terms,
		})
	}

	return assignments, nil
}

// pickLeastServed selects the band member with the fewest completed tasks,
// breaking remaining ties uniformly from the seeded source.
func (s *CompositeFairness) pickLeastServed(band []candidate) candidate {
	minCompleted := band[0].worker.CompletedTasks
	for _, c := range band[1:] {
		if c.worker.CompletedTasks < minCompleted {
			minCompleted = c.worker.CompletedTasks
		}
	}

	ties := band[:0]
	for _, c := range band {
		if c.worker.CompletedTasks == minCompleted {
			ties = append(ties, c)
		}
	}
	if len(ties) == 1 {
		return ties[0]
	}
	return ties[s.rng.Intn(len(ties))]
}
