package strategy

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/pkg/types"
)

var base = time.Date(2020, 11, 1, 8, 0, 0, 0, time.UTC)

func testWorker(id string, lat, lon float64) types.WorkerRecord {
	return testWorkerUntil(id, lat, lon, base.Add(8*time.Hour))
}

func testWorkerUntil(id string, lat, lon float64, deadline time.Time) types.WorkerRecord {
	return types.WorkerRecord{
		ID:          types.WorkerID(id),
		StartLat:    lat,
		StartLon:    lon,
		ReleaseTime: base,
		Deadline:    deadline,
	}
}

func testTask(id string, lat, lon float64) types.TaskRecord {
	return testTaskUntil(id, lat, lon, base.Add(2*time.Hour))
}

func testTaskUntil(id string, lat, lon float64, expire time.Time) types.TaskRecord {
	return types.TaskRecord{
		ID:          types.TaskID(id),
		PickupLat:   lat,
		PickupLon:   lon,
		DropoffLat:  lat + 0.1,
		DropoffLon:  lon,
		ReleaseTime: base,
		ExpireTime:  expire,
	}
}

func newPool(workers []types.WorkerRecord, tasks []types.TaskRecord) *pool.Manager {
	return pool.New(workers, tasks, pool.Config{})
}

func TestNew_RegisteredVariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	greedy, err := New(NameNearestFeasible, Params{}, rng)
	require.NoError(t, err)
	assert.Equal(t, NameNearestFeasible, greedy.Name())

	composite, err := New(NameCompositeFairness, Params{}, rng)
	require.NoError(t, err)
	assert.Equal(t, NameCompositeFairness, composite.Name())
}

func TestNew_UnknownName(t *testing.T) {
	_, err := New("auction", Params{}, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestParams_NormalizeFillsDefaults(t *testing.T) {
	def := DefaultParams()
	p := Params{}.Normalize()
	assert.Equal(t, def.Lambda1, p.Lambda1)
	assert.Equal(t, def.Lambda2, p.Lambda2)
	assert.Equal(t, def.Lambda3, p.Lambda3)
	assert.Equal(t, def.Gamma, p.Gamma)
	assert.Equal(t, def.SoftThreshold, p.SoftThreshold)
	assert.Equal(t, def.ScoreFilter, p.ScoreFilter)
	assert.Zero(t, p.K, "zero k means unlimited and is preserved")
}

func TestParams_NormalizeKeepsExplicitValues(t *testing.T) {
	in := Params{
		Lambda1:       2,
		Lambda2:       3,
		Lambda3:       4,
		Gamma:         0.5,
		K:             -1,
		SoftThreshold: 1.5,
		ScoreFilter:   0.9,
	}
	assert.Equal(t, in, in.Normalize())
}

func TestParams_NormalizeRejectsOutOfRangeGamma(t *testing.T) {
	assert.Equal(t, DefaultParams().Gamma, Params{Gamma: 1.0}.Normalize().Gamma)
	assert.Equal(t, DefaultParams().Gamma, Params{Gamma: -0.2}.Normalize().Gamma)
}
