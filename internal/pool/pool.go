// Package pool owns the entity lifecycle pools for one simulation run.
//
// A task occupies exactly one of {pending, active, assigned, completed} and a
// worker exactly one of {pending, available, assigned}. The manager uses a
// hybrid layout: maps keyed by ID are the single source of truth for lookup,
// while insertion-ordered ID slices preserve "pool order" so that matching
// strategies iterate deterministically. Assignment edges live in an explicit
// task↔worker table owned here; the ID references stored on the entities are
// kept consistent with it but are never authoritative.
//
// State transitions:
//
//	task:   pending → active → assigned → completed
//	worker: pending → available ⇄ assigned
//
// Pools are owned exclusively by one Manager per run; every mutation goes
// through Release/Assign/Complete/Step. The simulation is single-threaded by
// design, so no locking happens here.
package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/crowdsim/crowdsim/internal/fairness"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// Pool misuse indicates a logic fault in the caller, never repaired locally.
// All transition errors unwrap to ErrInvalidTransition.
var (
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrTaskNotActive      = fmt.Errorf("%w: task not in active pool", ErrInvalidTransition)
	ErrWorkerNotAvailable = fmt.Errorf("%w: worker not in available pool", ErrInvalidTransition)
	ErrNotAssigned        = fmt.Errorf("%w: pair not currently assigned", ErrInvalidTransition)
	ErrEdgeMismatch       = fmt.Errorf("%w: assignment edge does not match pair", ErrInvalidTransition)
)

// Config carries the execution flags the manager needs. It is passed
// explicitly at construction; there are no process-wide defaults.
type Config struct {
	Mode     types.CompletionMode // instant or distance completion
	Teleport bool                 // move worker to dropoff on completion
	Revenue  float64              // revenue credited per service kilometre

	// Fairness tracker invoked for every available worker each Step. A
	// default-γ tracker is used when nil.
	Fairness *fairness.Tracker
}

// Manager owns the lifecycle pools for the run.
type Manager struct {
	cfg Config

	workers map[types.WorkerID]*types.Worker
	tasks   map[types.TaskID]*types.Task

	workerStage map[types.WorkerID]types.WorkerStage
	taskStage   map[types.TaskID]types.TaskStage

	// Insertion-ordered pools. Pending preserves input order, the others
	// preserve transition order.
	pendingWorkers   []types.WorkerID
	availableWorkers []types.WorkerID
	pendingTasks     []types.TaskID
	activeTasks      []types.TaskID
	assignedTasks    []types.TaskID
	completedTasks   []types.TaskID

	// Bidirectional assignment edge table.
	taskEdges   map[types.TaskID]types.WorkerID
	workerEdges map[types.WorkerID]types.TaskID

	inputWorkers int
	inputTasks   int
}

// New builds a manager from canonical input records. All entities start in
// their pending pools.
func New(workers []types.WorkerRecord, tasks []types.TaskRecord, cfg Config) *Manager {
	if cfg.Fairness == nil {
		cfg.Fairness = fairness.NewTracker(fairness.DefaultGamma)
	}
	if cfg.Mode == "" {
		cfg.Mode = types.CompletionDistance
	}

	m := &Manager{
		cfg:          cfg,
		workers:      make(map[types.WorkerID]*types.Worker, len(workers)),
		tasks:        make(map[types.TaskID]*types.Task, len(tasks)),
		workerStage:  make(map[types.WorkerID]types.WorkerStage, len(workers)),
		taskStage:    make(map[types.TaskID]types.TaskStage, len(tasks)),
		taskEdges:    make(map[types.TaskID]types.WorkerID),
		workerEdges:  make(map[types.WorkerID]types.TaskID),
		inputWorkers: len(workers),
		inputTasks:   len(tasks),
	}

	for _, rec := range workers {
		w := types.NewWorker(rec)
		m.workers[w.ID] = w
		m.workerStage[w.ID] = types.WorkerPending
		m.pendingWorkers = append(m.pendingWorkers, w.ID)
	}
	for _, rec := range tasks {
		t := types.NewTask(rec)
		m.tasks[t.ID] = t
		m.taskStage[t.ID] = types.TaskPending
		m.pendingTasks = append(m.pendingTasks, t.ID)
	}

	return m
}

// Release moves every pending worker and task whose release time has arrived
// into the available/active pool. The transition fires exactly once per
// entity, so calling Release twice at the same now causes no further moves.
func (m *Manager) Release(now time.Time) {
	remaining := m.pendingWorkers[:0]
	for _, id := range m.pendingWorkers {
		w := m.workers[id]
		if !w.ReleaseTime.After(now) {
			m.workerStage[id] = types.WorkerAvailable
			m.availableWorkers = append(m.availableWorkers, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	m.pendingWorkers = remaining

	remainingTasks := m.pendingTasks[:0]
	for _, id := range m.pendingTasks {
		t := m.tasks[id]
		if !t.ReleaseTime.After(now) {
			m.taskStage[id] = types.TaskActive
			m.activeTasks = append(m.activeTasks, id)
		} else {
			remainingTasks = append(remainingTasks, id)
		}
	}
	m.pendingTasks = remainingTasks
}

// Assign atomically moves an active task and an available worker into their
// assigned pools and records the bidirectional edge.
func (m *Manager) Assign(t *types.Task, w *types.Worker) error {
	if m.taskStage[t.ID] != types.TaskActive {
		return fmt.Errorf("assign task %s: %w", t.ID, ErrTaskNotActive)
	}
	if m.workerStage[w.ID] != types.WorkerAvailable {
		return fmt.Errorf("assign worker %s: %w", w.ID, ErrWorkerNotAvailable)
	}

	m.activeTasks = removeTaskID(m.activeTasks, t.ID)
	m.availableWorkers = removeWorkerID(m.availableWorkers, w.ID)
	m.assignedTasks = append(m.assignedTasks, t.ID)

	m.taskStage[t.ID] = types.TaskAssigned
	m.workerStage[w.ID] = types.WorkerAssigned
	m.taskEdges[t.ID] = w.ID
	m.workerEdges[w.ID] = t.ID

	t.Assigned = true
	t.AssignedWorker = w.ID
	w.Available = false
	w.AssignedTask = t.ID

	return nil
}

// Complete removes an assigned pair from the assigned pools, appends the task
// to the completed pool, runs the worker's completion bookkeeping, and
// returns the worker to the available pool. With the teleport flag set the
// worker's position jumps to the task's dropoff point.
func (m *Manager) Complete(t *types.Task, w *types.Worker, now time.Time) error {
	if m.taskStage[t.ID] != types.TaskAssigned || m.workerStage[w.ID] != types.WorkerAssigned {
		return fmt.Errorf("complete task %s / worker %s: %w", t.ID, w.ID, ErrNotAssigned)
	}
	if m.taskEdges[t.ID] != w.ID || m.workerEdges[w.ID] != t.ID {
		return fmt.Errorf("complete task %s / worker %s: %w", t.ID, w.ID, ErrEdgeMismatch)
	}

	m.assignedTasks = removeTaskID(m.assignedTasks, t.ID)
	delete(m.taskEdges, t.ID)
	delete(m.workerEdges, w.ID)

	m.taskStage[t.ID] = types.TaskCompleted
	m.completedTasks = append(m.completedTasks, t.ID)

	w.CompletedTasks++
	w.Revenue += m.cfg.Revenue * (t.PickupKm + t.DropKm)
	w.LastActiveTS = now
	w.Available = true
	w.AssignedTask = ""

	if m.cfg.Teleport {
		w.Lat = t.DropoffLat
		w.Lon = t.DropoffLon
	}

	m.workerStage[w.ID] = types.WorkerAvailable
	m.availableWorkers = append(m.availableWorkers, w.ID)

	return nil
}

// Step performs the per-tick pool update: release, idle-time update for every
// currently available worker, and, in distance completion mode, lazy
// completion of every assignment whose finish time has been reached. Lazy
// completions are recorded at their projected finish time, not at now.
func (m *Manager) Step(now time.Time) error {
	m.Release(now)

	for _, id := range m.availableWorkers {
		m.cfg.Fairness.UpdateIdle(m.workers[id], now)
	}

	if m.cfg.Mode != types.CompletionDistance {
		return nil
	}

	due := make([]types.TaskID, 0)
	for _, id := range m.assignedTasks {
		t := m.tasks[id]
		if !t.FinishTime.IsZero() && !t.FinishTime.After(now) {
			due = append(due, id)
		}
	}
	for _, id := range due {
		t := m.tasks[id]
		w := m.workers[m.taskEdges[id]]
		if err := m.Complete(t, w, t.FinishTime); err != nil {
			return err
		}
	}
	return nil
}

// ExpiredUnserved returns the active tasks whose expiry has passed. They are
// never evicted mid-run; the count feeds the end-of-run report.
func (m *Manager) ExpiredUnserved(now time.Time) []*types.Task {
	var out []*types.Task
	for _, id := range m.activeTasks {
		t := m.tasks[id]
		if t.ExpireTime.Before(now) {
			out = append(out, t)
		}
	}
	return out
}

// Drained reports whether the pending, active, and assigned task pools are
// all simultaneously empty — the no-end-time termination condition.
func (m *Manager) Drained() bool {
	return len(m.pendingTasks) == 0 && len(m.activeTasks) == 0 && len(m.assignedTasks) == 0
}

// EarliestRelease returns the earliest release time across all input
// entities, used to infer the clock start when none is configured.
func (m *Manager) EarliestRelease() (time.Time, bool) {
	var earliest time.Time
	found := false
	consider := func(ts time.Time) {
		if !found || ts.Before(earliest) {
			earliest = ts
			found = true
		}
	}
	for _, w := range m.workers {
		consider(w.ReleaseTime)
	}
	for _, t := range m.tasks {
		consider(t.ReleaseTime)
	}
	return earliest, found
}

// ActiveTasks returns the released, unassigned tasks in pool order.
func (m *Manager) ActiveTasks() []*types.Task { return m.taskSlice(m.activeTasks) }

// AssignedTasks returns the currently assigned tasks in assignment order.
func (m *Manager) AssignedTasks() []*types.Task { return m.taskSlice(m.assignedTasks) }

// CompletedTasks returns the completed tasks in completion order.
func (m *Manager) CompletedTasks() []*types.Task { return m.taskSlice(m.completedTasks) }

// AvailableWorkers returns the available workers in pool order.
func (m *Manager) AvailableWorkers() []*types.Worker {
	out := make([]*types.Worker, len(m.availableWorkers))
	for i, id := range m.availableWorkers {
		out[i] = m.workers[id]
	}
	return out
}

// ReleasedWorkers returns every worker that has left the pending pool,
// available first, then busy workers in assignment order.
func (m *Manager) ReleasedWorkers() []*types.Worker {
	out := make([]*types.Worker, 0, len(m.availableWorkers)+len(m.workerEdges))
	out = append(out, m.AvailableWorkers()...)
	for _, id := range m.assignedTasks {
		out = append(out, m.workers[m.taskEdges[id]])
	}
	return out
}

// Task looks up a task by ID, nil when unknown.
func (m *Manager) Task(id types.TaskID) *types.Task { return m.tasks[id] }

// Worker looks up a worker by ID, nil when unknown.
func (m *Manager) Worker(id types.WorkerID) *types.Worker { return m.workers[id] }

// WorkerFor returns the worker currently assigned to the task, if any.
func (m *Manager) WorkerFor(id types.TaskID) (*types.Worker, bool) {
	wid, ok := m.taskEdges[id]
	if !ok {
		return nil, false
	}
	return m.workers[wid], true
}

// TaskFor returns the task the worker is currently busy with, if any.
func (m *Manager) TaskFor(id types.WorkerID) (*types.Task, bool) {
	tid, ok := m.workerEdges[id]
	if !ok {
		return nil, false
	}
	return m.tasks[tid], true
}

// TaskStageOf returns the lifecycle pool the task currently occupies.
func (m *Manager) TaskStageOf(id types.TaskID) types.TaskStage { return m.taskStage[id] }

// WorkerStageOf returns the lifecycle pool the worker currently occupies.
func (m *Manager) WorkerStageOf(id types.WorkerID) types.WorkerStage { return m.workerStage[id] }

// Mode returns the configured completion mode.
func (m *Manager) Mode() types.CompletionMode { return m.cfg.Mode }

// InputCounts returns the original number of worker and task records.
func (m *Manager) InputCounts() (workers, tasks int) { return m.inputWorkers, m.inputTasks }

// Stats returns per-pool sizes keyed by pool name.
func (m *Manager) Stats() map[string]int {
	return map[string]int{
		"pending_workers":   len(m.pendingWorkers),
		"available_workers": len(m.availableWorkers),
		"assigned_workers":  len(m.workerEdges),
		"pending_tasks":     len(m.pendingTasks),
		"active_tasks":      len(m.activeTasks),
		"assigned_tasks":    len(m.assignedTasks),
		"completed_tasks":   len(m.completedTasks),
	}
}

func (m *Manager) taskSlice(ids []types.TaskID) []*types.Task {
	out := make([]*types.Task, len(ids))
	for i, id := range ids {
		out[i] = m.tasks[id]
	}
	return out
}

func removeTaskID(s []types.TaskID, id types.TaskID) []types.TaskID {
	for i, v := range s {
		if v == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func removeWorkerID(s []types.WorkerID, id types.WorkerID) []types.WorkerID {
	for i, v := range s {
		if v == id {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
