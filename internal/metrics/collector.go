package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector mirrors per-tick snapshots to Prometheus so a long run can be
// watched live. The registerer is injected so tests can use a fresh registry.
type Collector struct {
	assignmentsTotal prometheus.Counter
	completionsTotal prometheus.Counter

	backlog        prometheus.Gauge
	assigned       prometheus.Gauge
	completedTotal prometheus.Gauge
	jfi            prometheus.Gauge
	meanTaskAge    prometheus.Gauge
	fairnessMean   prometheus.Gauge
}

// NewCollector creates and registers the simulator metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		assignmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_assignments_total",
			Help: "Total number of task assignments committed",
		}),
		completionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sim_completions_total",
			Help: "Total number of tasks completed",
		}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_backlog_tasks",
			Help: "Current number of active (released, unassigned) tasks",
		}),
		assigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_assigned_tasks",
			Help: "Current number of assigned tasks",
		}),
		completedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_completed_tasks",
			Help: "Cumulative number of completed tasks",
		}),
		jfi: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_jain_fairness_index",
			Help: "Jain's Fairness Index over per-worker completion counts",
		}),
		meanTaskAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_mean_task_age_minutes",
			Help: "Mean age of active and assigned tasks in minutes",
		}),
		fairnessMean: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sim_fairness_signal_mean",
			Help: "Mean EWMA fairness signal over released workers",
		}),
	}

	reg.MustRegister(
		c.assignmentsTotal,
		c.completionsTotal,
		c.backlog,
		c.assigned,
		c.completedTotal,
		c.jfi,
		c.meanTaskAge,
		c.fairnessMean,
	)

	return c
}

// Observe pushes one tick's snapshot plus per-tick assignment and completion
// counts.
func (c *Collector) Observe(snap Snapshot, assignments, completions int) {
	c.assignmentsTotal.Add(float64(assignments))
	c.completionsTotal.Add(float64(completions))
	c.backlog.Set(float64(snap.Backlog))
	c.assigned.Set(float64(snap.Assigned))
	c.completedTotal.Set(float64(snap.CompletedTotal))
	c.jfi.Set(snap.JFI)
	c.meanTaskAge.Set(snap.MeanTaskAgeMin)
	c.fairnessMean.Set(snap.FairnessMean)
}

// StartServer exposes /metrics on the given port. Blocks; callers run it in
// a goroutine.
func StartServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, nil)
}
