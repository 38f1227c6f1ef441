// Package sim contains the tick driver: the coordinator that advances
// simulated time in fixed steps and runs release, fairness update, matching,
// and completion in strict order each tick.
package sim

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crowdsim/crowdsim/internal/metrics"
	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/internal/strategy"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// Config is the driver configuration, passed explicitly at construction.
type Config struct {
	// Step is the fixed tick size. Must be positive.
	Step time.Duration

	// Start is the simulated clock origin. Zero means "infer": the earliest
	// release time across all input records.
	Start time.Time

	// End is the explicit stop time; the run terminates once the clock
	// passes it. Zero means "run until the task pools drain".
	End time.Time

	// MaxTicks aborts a run that fails to drain, e.g. when an unserviceable
	// task stays active forever with no end time configured. Zero disables
	// the guard.
	MaxTicks int
}

// Driver advances the simulation tick by tick.
type Driver struct {
	cfg      Config
	pools    *pool.Manager
	strategy strategy.Strategy
	tracker  *metrics.Tracker
	prom     *metrics.Collector // optional
	log      *zap.Logger
}

// Report summarises a finished run.
type Report struct {
	Ticks           int
	Assignments     int
	Completed       int
	Unserved        int // tasks never completed (pending + active + assigned)
	ExpiredUnserved int // active tasks whose expiry passed, never evicted
	FinalJFI        float64
}

// New builds a driver. The tracker must be non-nil; the prometheus collector
// and logger may be nil.
func New(cfg Config, pools *pool.Manager, strat strategy.Strategy, tracker *metrics.Tracker, prom *metrics.Collector, log *zap.Logger) (*Driver, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("tick step must be positive, got %s", cfg.Step)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		cfg:      cfg,
		pools:    pools,
		strategy: strat,
		tracker:  tracker,
		prom:     prom,
		log:      log,
	}, nil
}

// Run executes ticks until the end time is exceeded or, with no end time,
// until the pending, active, and assigned task pools are all empty. Each
// tick runs release → fairness update → matching → completion in that order;
// instant completion mode finishes every assignment in the tick it was made,
// distance mode waits for the projected finish time inside a later Step.
func (d *Driver) Run() (*Report, error) {
	now := d.cfg.Start
	if now.IsZero() {
		earliest, ok := d.pools.EarliestRelease()
		if !ok {
			return nil, fmt.Errorf("cannot infer start time: no workers or tasks")
		}
		now = earliest
	}

	report := &Report{}
	tick := 0

	for {
		completedBefore := len(d.pools.CompletedTasks())

		// Release + idle update + lazy distance-mode completion.
		if err := d.pools.Step(now); err != nil {
			return nil, fmt.Errorf("tick %d: %w", tick, err)
		}

		assignments, err := d.strategy.Assign(d.pools, now)
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", tick, err)
		}
		for _, a := range assignments {
			d.log.Debug("assign",
				zap.Int("tick", tick),
				zap.String("task", string(a.TaskID)),
				zap.String("worker", string(a.WorkerID)),
				zap.Float64("metric", a.Metric))
		}

		if d.pools.Mode() == types.CompletionInstant {
			for _, a := range assignments {
				t := d.pools.Task(a.TaskID)
				w := d.pools.Worker(a.WorkerID)
				if err := d.pools.Complete(t, w, now); err != nil {
					return nil, fmt.Errorf("tick %d: %w", tick, err)
				}
			}
		}

		completedNow := len(d.pools.CompletedTasks()) - completedBefore
		snap := d.tracker.Snapshot(d.pools, now)
		if d.prom != nil {
			d.prom.Observe(snap, len(assignments), completedNow)
		}
		d.log.Debug("tick",
			zap.Int("tick", tick),
			zap.Time("now", now),
			zap.Int("backlog", snap.Backlog),
			zap.Int("assigned", snap.Assigned),
			zap.Int("completed_total", snap.CompletedTotal))

		report.Assignments += len(assignments)
		tick++
		now = now.Add(d.cfg.Step)

		if !d.cfg.End.IsZero() {
			if now.After(d.cfg.End) {
				break
			}
		} else if d.pools.Drained() {
			break
		}
		if d.cfg.MaxTicks > 0 && tick >= d.cfg.MaxTicks {
			d.log.Warn("tick limit reached before the system drained",
				zap.Int("max_ticks", d.cfg.MaxTicks))
			break
		}
	}

	report.Ticks = tick
	d.finishReport(report, now)

	d.log.Info("simulation complete",
		zap.Int("ticks", report.Ticks),
		zap.Int("assignments", report.Assignments),
		zap.Int("completed", report.Completed),
		zap.Int("unserved", report.Unserved),
		zap.Int("expired_unserved", report.ExpiredUnserved),
		zap.Float64("final_jfi", report.FinalJFI))

	return report, nil
}

func (d *Driver) finishReport(report *Report, now time.Time) {
	stats := d.pools.Stats()
	report.Completed = stats["completed_tasks"]
	report.Unserved = stats["pending_tasks"] + stats["active_tasks"] + stats["assigned_tasks"]
	report.ExpiredUnserved = len(d.pools.ExpiredUnserved(now))

	released := d.pools.ReleasedWorkers()
	counts := make([]float64, len(released))
	for i, w := range released {
		counts[i] = float64(w.CompletedTasks)
	}
	report.FinalJFI = metrics.JainsFairness(counts)
}
