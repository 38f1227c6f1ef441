package dataset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsim/crowdsim/internal/geo"
)

func TestGenerate_Counts(t *testing.T) {
	cfg := DefaultSynthConfig()
	cfg.Workers = 7
	cfg.Tasks = 11

	workers, tasks := Generate(cfg)
	assert.Len(t, workers, 7)
	assert.Len(t, tasks, 11)
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := DefaultSynthConfig()
	cfg.Workers = 10
	cfg.Tasks = 10

	workersA, tasksA := Generate(cfg)
	workersB, tasksB := Generate(cfg)
	assert.Equal(t, workersA, workersB)
	assert.Equal(t, tasksA, tasksB)

	cfg.Seed = 99
	workersC, _ := Generate(cfg)
	assert.NotEqual(t, workersA, workersC, "a different seed must move the points")
}

func TestGenerate_RespectsBounds(t *testing.T) {
	cfg := DefaultSynthConfig()
	cfg.Workers = 40
	cfg.Tasks = 40

	workers, tasks := Generate(cfg)
	windowEnd := cfg.Start.Add(cfg.Window)

	center := struct{ Lat, Lon float64 }{cfg.CenterLat, cfg.CenterLon}
	// The jitter is a square in planar km, so the Manhattan sum is bounded by
	// twice the radius.
	maxKm := 2 * cfg.RadiusKm

	for _, w := range workers {
		assert.False(t, w.ReleaseTime.Before(cfg.Start))
		assert.True(t, w.ReleaseTime.Before(windowEnd))
		assert.Equal(t, cfg.WorkerShift, w.Deadline.Sub(w.ReleaseTime))
		assert.LessOrEqual(t, geo.ManhattanKm(center.Lat, center.Lon, w.StartLat, w.StartLon), maxKm+0.01)
	}
	for _, task := range tasks {
		assert.Equal(t, cfg.TaskLifetime, task.ExpireTime.Sub(task.ReleaseTime))
		assert.LessOrEqual(t, geo.ManhattanKm(center.Lat, center.Lon, task.PickupLat, task.PickupLon), maxKm+0.01)
	}
}

func TestGenerate_RoundTripsThroughLoader(t *testing.T) {
	cfg := DefaultSynthConfig()
	cfg.Workers = 5
	cfg.Tasks = 5

	workers, tasks := Generate(cfg)

	dir := t.TempDir()
	workersPath := filepath.Join(dir, "workers.csv")
	tasksPath := filepath.Join(dir, "tasks.csv")
	require.NoError(t, WriteWorkersCSV(workersPath, workers))
	require.NoError(t, WriteTasksCSV(tasksPath, tasks))

	loadedWorkers, loadedTasks, err := Load(workersPath, tasksPath)
	require.NoError(t, err)
	require.Len(t, loadedWorkers, 5)
	require.Len(t, loadedTasks, 5)

	for i, w := range loadedWorkers {
		assert.Equal(t, workers[i].ID, w.ID)
		assert.InDelta(t, workers[i].StartLat, w.StartLat, 1e-6, "coordinates round to six decimals")
		assert.InDelta(t, workers[i].StartLon, w.StartLon, 1e-6)
		assert.True(t, workers[i].ReleaseTime.Truncate(time.Second).Equal(w.ReleaseTime))
	}
	for i, task := range loadedTasks {
		assert.Equal(t, tasks[i].ID, task.ID)
		assert.InDelta(t, tasks[i].PickupLat, task.PickupLat, 1e-6)
		assert.True(t, tasks[i].ExpireTime.Truncate(time.Second).Equal(task.ExpireTime))
	}
}
