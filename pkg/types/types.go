// Package types defines the core domain models shared across the simulator:
// workers, tasks, their canonical input records, and the assignment decisions
// produced each tick.
package types

import (
	"time"
)

// WorkerID uniquely identifies a worker.
type WorkerID string

// TaskID uniquely identifies a task.
type TaskID string

// WorkerStage names the lifecycle pool a worker currently occupies.
type WorkerStage string

// TaskStage names the lifecycle pool a task currently occupies.
type TaskStage string

// Worker lifecycle stages. A worker occupies exactly one at any time.
const (
	WorkerPending   WorkerStage = "pending"   // ingested, release_time not yet reached
	WorkerAvailable WorkerStage = "available" // released and free to take a task
	WorkerAssigned  WorkerStage = "assigned"  // busy with exactly one task
)

// Task lifecycle stages. A task occupies exactly one at any time.
const (
	TaskPending   TaskStage = "pending"   // ingested, release_time not yet reached
	TaskActive    TaskStage = "active"    // released and waiting for a worker
	TaskAssigned  TaskStage = "assigned"  // paired with a worker
	TaskCompleted TaskStage = "completed" // service finished
)

// CompletionMode controls when an assigned task transitions to completed.
type CompletionMode string

const (
	// CompletionInstant completes every assignment synchronously in the tick
	// it was made, overriding the computed travel-time clock.
	CompletionInstant CompletionMode = "instant"

	// CompletionDistance completes an assignment lazily in a later tick,
	// once the projected finish time has been reached.
	CompletionDistance CompletionMode = "distance"
)

// WorkerRecord is the canonical input record for a worker, as produced by a
// dataset adapter.
type WorkerRecord struct {
	ID          WorkerID
	StartLat    float64
	StartLon    float64
	ReleaseTime time.Time
	Deadline    time.Time
}

// TaskRecord is the canonical input record for a task.
type TaskRecord struct {
	ID          TaskID
	PickupLat   float64
	PickupLon   float64
	DropoffLat  float64
	DropoffLon  float64
	ReleaseTime time.Time
	ExpireTime  time.Time
}

// Worker is the live simulation state for one worker. All mutation goes
// through the pool manager; other components treat workers as read-only.
type Worker struct {
	ID          WorkerID
	Lat         float64
	Lon         float64
	ReleaseTime time.Time
	Deadline    time.Time

	// Assignment state. AssignedTask is set only while busy; the pool
	// manager's edge table is the authoritative record and keeps both
	// directions in sync.
	Available    bool
	AssignedTask TaskID

	// Fairness bookkeeping.
	TotalIdle   time.Duration // cumulative idle duration
	Fairness    float64       // EWMA fairness signal over idle seconds
	LastStateTS time.Time     // marker the next idle delta is measured from

	// Completion bookkeeping.
	CompletedTasks int
	Revenue        float64
	LastActiveTS   time.Time // when the last task finished
}

// NewWorker builds the live worker state from a canonical record. The idle
// marker starts at the release time so the first idle delta is measured from
// the moment the worker enters the system.
func NewWorker(rec WorkerRecord) *Worker {
	return &Worker{
		ID:          rec.ID,
		Lat:         rec.StartLat,
		Lon:         rec.StartLon,
		ReleaseTime: rec.ReleaseTime,
		Deadline:    rec.Deadline,
		Available:   true,
		LastStateTS: rec.ReleaseTime,
	}
}

// Task is the live simulation state for one task.
type Task struct {
	ID          TaskID
	PickupLat   float64
	PickupLon   float64
	DropoffLat  float64
	DropoffLon  float64
	ReleaseTime time.Time
	ExpireTime  time.Time

	Assigned       bool
	AssignedWorker WorkerID

	// Service bookkeeping, set once on assignment.
	StartTime  time.Time
	FinishTime time.Time
	PickupKm   float64
	DropKm     float64
}

// NewTask builds the live task state from a canonical record.
func NewTask(rec TaskRecord) *Task {
	return &Task{
		ID:          rec.ID,
		PickupLat:   rec.PickupLat,
		PickupLon:   rec.PickupLon,
		DropoffLat:  rec.DropoffLat,
		DropoffLon:  rec.DropoffLon,
		ReleaseTime: rec.ReleaseTime,
		ExpireTime:  rec.ExpireTime,
	}
}

// ScoreTerms is the decomposed composite score of a committed assignment.
type ScoreTerms struct {
	Fairness   float64 // λ1 · fairness signal
	Starvation float64 // λ2 · ln(1 + task age seconds)
	Utility    float64 // λ3 · 1 / (1 + pickup distance km)
}

// Assignment is one task→worker pairing committed during a tick. Metric is
// the pickup distance for the greedy strategy and the composite score for the
// fairness-aware one; Terms is set only by the latter.
type Assignment struct {
	TaskID   TaskID
	WorkerID WorkerID
	Metric   float64
	Terms    *ScoreTerms
}
