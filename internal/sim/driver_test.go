package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsim/crowdsim/internal/metrics"
	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/internal/strategy"
	"github.com/crowdsim/crowdsim/pkg/types"
)

var start = time.Date(2020, 11, 1, 8, 0, 0, 0, time.UTC)

// One worker at the origin, one task 0.1° north with the dropoff another 0.1°
// on: an 11.1 km pickup leg plus an 11.1 km service leg, 44.4 minutes at
// 30 km/h.
func singlePairRecords(deadline, expire time.Time) ([]types.WorkerRecord, []types.TaskRecord) {
	workers := []types.WorkerRecord{{
		ID:          "w1",
		StartLat:    0,
		StartLon:    0,
		ReleaseTime: start,
		Deadline:    deadline,
	}}
	tasks := []types.TaskRecord{{
		ID:          "t1",
		PickupLat:   0.1,
		PickupLon:   0,
		DropoffLat:  0.2,
		DropoffLon:  0,
		ReleaseTime: start,
		ExpireTime:  expire,
	}}
	return workers, tasks
}

func greedyStrategy(t *testing.T) strategy.Strategy {
	t.Helper()
	s, err := strategy.New(strategy.NameNearestFeasible, strategy.Params{}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	return s
}

func TestRun_DistanceModeEndToEnd(t *testing.T) {
	workers, tasks := singlePairRecords(start.Add(8*time.Hour), start.Add(2*time.Hour))
	pools := pool.New(workers, tasks, pool.Config{Mode: types.CompletionDistance, Teleport: true})
	tracker := metrics.NewTracker()

	d, err := New(Config{Step: 5 * time.Minute}, pools, greedyStrategy(t), tracker, nil, nil)
	require.NoError(t, err)

	report, err := d.Run()
	require.NoError(t, err)

	// The pair is matched at tick 0 and the 44.4-minute trip finishes inside
	// the tick whose clock reads start+45m, which is tick 9 at 5-minute steps.
	assert.Equal(t, 10, report.Ticks)
	assert.Equal(t, 1, report.Assignments)
	assert.Equal(t, 1, report.Completed)
	assert.Zero(t, report.Unserved)
	assert.Zero(t, report.ExpiredUnserved)
	assert.Equal(t, 1.0, report.FinalJFI)

	task := pools.Task("t1")
	wantFinish := start.Add(time.Duration(22.2 / 30.0 * float64(time.Hour)))
	assert.WithinDuration(t, wantFinish, task.FinishTime, time.Second)

	worker := pools.Worker("w1")
	assert.Equal(t, 0.2, worker.Lat, "teleported to the dropoff")
	assert.Equal(t, task.FinishTime, worker.LastActiveTS, "completion recorded at the projected finish, not the tick clock")

	records := tracker.Records()
	require.Len(t, records, 10)
	assert.Equal(t, 1, records[0].Assigned)
	assert.Equal(t, 0, records[0].CompletedTotal)
	assert.Equal(t, 1, records[9].CompletedTotal)
}

func TestRun_InstantModeCompletesInTheAssignmentTick(t *testing.T) {
	workers, tasks := singlePairRecords(start.Add(8*time.Hour), start.Add(2*time.Hour))
	pools := pool.New(workers, tasks, pool.Config{Mode: types.CompletionInstant})

	d, err := New(Config{Step: 5 * time.Minute}, pools, greedyStrategy(t), metrics.NewTracker(), nil, nil)
	require.NoError(t, err)

	report, err := d.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ticks)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, start, pools.Worker("w1").LastActiveTS)
}

func TestRun_InfersStartFromEarliestRelease(t *testing.T) {
	workers, tasks := singlePairRecords(start.Add(8*time.Hour), start.Add(2*time.Hour))
	pools := pool.New(workers, tasks, pool.Config{Mode: types.CompletionInstant})
	tracker := metrics.NewTracker()

	d, err := New(Config{Step: time.Minute}, pools, greedyStrategy(t), tracker, nil, nil)
	require.NoError(t, err)

	_, err = d.Run()
	require.NoError(t, err)
	require.NotEmpty(t, tracker.Records())
	assert.Equal(t, start, tracker.Records()[0].Time)
}

func TestRun_EndTimeStopsAnUndrainedRun(t *testing.T) {
	// A deadline one minute out makes the task permanently unserviceable.
	workers, tasks := singlePairRecords(start.Add(time.Minute), start.Add(2*time.Hour))
	pools := pool.New(workers, tasks, pool.Config{})

	d, err := New(Config{Step: 5 * time.Minute, End: start.Add(10 * time.Minute)}, pools, greedyStrategy(t), metrics.NewTracker(), nil, nil)
	require.NoError(t, err)

	report, err := d.Run()
	require.NoError(t, err)

	assert.Equal(t, 3, report.Ticks, "ticks at +0m, +5m, +10m inclusive")
	assert.Zero(t, report.Completed)
	assert.Equal(t, 1, report.Unserved)
}

func TestRun_MaxTicksGuardBreaksTheLoop(t *testing.T) {
	workers, tasks := singlePairRecords(start.Add(time.Minute), start.Add(10*time.Minute))
	pools := pool.New(workers, tasks, pool.Config{})

	d, err := New(Config{Step: 5 * time.Minute, MaxTicks: 5}, pools, greedyStrategy(t), metrics.NewTracker(), nil, nil)
	require.NoError(t, err)

	report, err := d.Run()
	require.NoError(t, err)

	assert.Equal(t, 5, report.Ticks)
	assert.Equal(t, 1, report.Unserved)
	assert.Equal(t, 1, report.ExpiredUnserved, "expired at +10m, before the clock stops at +25m")
}

func TestRun_EmptyInputCannotInferStart(t *testing.T) {
	pools := pool.New(nil, nil, pool.Config{})
	d, err := New(Config{Step: time.Minute}, pools, greedyStrategy(t), metrics.NewTracker(), nil, nil)
	require.NoError(t, err)

	_, err = d.Run()
	assert.ErrorContains(t, err, "cannot infer start time")
}

func TestNew_RejectsNonPositiveStep(t *testing.T) {
	pools := pool.New(nil, nil, pool.Config{})
	_, err := New(Config{Step: 0}, pools, greedyStrategy(t), metrics.NewTracker(), nil, nil)
	assert.Error(t, err)
}
