// Package metrics captures per-tick simulation KPIs: backlog, completion
// counters, Jain's Fairness Index and utility spread over per-worker
// completions, task age, and the fairness-signal distribution. Snapshots can
// be accumulated for CSV export and mirrored to Prometheus gauges.
package metrics

import (
	"math"
	"sort"
	"time"

	"github.com/crowdsim/crowdsim/internal/pool"
)

// Snapshot is the state of the run captured at the end of one tick.
type Snapshot struct {
	Time           time.Time
	Backlog        int     // active (released, unassigned) tasks
	Assigned       int     // currently assigned tasks
	CompletedTotal int     // cumulative completed tasks
	JFI            float64 // Jain's Fairness Index over completion counts
	UtilitySpread  float64 // mean absolute deviation of completion counts
	MeanTaskAgeMin float64 // mean age of active+assigned tasks, minutes
	FairnessMean   float64 // fairness signal over released workers
	FairnessP90    float64
	FairnessMax    float64
}

// Capture computes a snapshot from the live pools.
func Capture(pools *pool.Manager, now time.Time) Snapshot {
	released := pools.ReleasedWorkers()

	counts := make([]float64, len(released))
	signals := make([]float64, len(released))
	for i, w := range released {
		counts[i] = float64(w.CompletedTasks)
		signals[i] = w.Fairness
	}

	var ages []float64
	for _, t := range pools.ActiveTasks() {
		ages = append(ages, now.Sub(t.ReleaseTime).Minutes())
	}
	for _, t := range pools.AssignedTasks() {
		ages = append(ages, now.Sub(t.ReleaseTime).Minutes())
	}

	stats := pools.Stats()
	return Snapshot{
		Time:           now,
		Backlog:        stats["active_tasks"],
		Assigned:       stats["assigned_tasks"],
		CompletedTotal: stats["completed_tasks"],
		JFI:            JainsFairness(counts),
		UtilitySpread:  meanAbsDeviation(counts),
		MeanTaskAgeMin: mean(ages),
		FairnessMean:   mean(signals),
		FairnessP90:    percentile(signals, 0.9),
		FairnessMax:    maxOf(signals),
	}
}

// JainsFairness computes (Σx)² / (n·Σx²) for non-negative values. An empty
// or all-zero input reads as perfectly fair: no activity has favoured anyone
// yet.
func JainsFairness(values []float64) float64 {
	if len(values) == 0 {
		return 1.0
	}
	var sum, sumSq float64
	for _, v := range values {
		sum += v
		sumSq += v * v
	}
	denom := float64(len(values)) * sumSq
	if denom == 0 {
		return 1.0
	}
	return sum * sum / denom
}

// meanAbsDeviation is the utility-difference metric: mean absolute deviation
// from the mean. Zero means perfectly equal completions.
func meanAbsDeviation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var dev float64
	for _, v := range values {
		dev += math.Abs(v - m)
	}
	return dev / float64(len(values))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile uses linear interpolation between closest ranks, matching the
// conventional quantile definition.
func percentile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
