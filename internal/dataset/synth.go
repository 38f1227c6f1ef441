package dataset

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/crowdsim/crowdsim/internal/geo"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// SynthConfig parameterises the synthetic generator. Workers and tasks are
// scattered uniformly within RadiusKm of the centre, with release times
// spread across the window.
type SynthConfig struct {
	Workers int
	Tasks   int

	CenterLat float64
	CenterLon float64
	RadiusKm  float64

	Start  time.Time     // release window origin
	Window time.Duration // releases are uniform in [Start, Start+Window)

	WorkerShift  time.Duration // deadline = release + WorkerShift
	TaskLifetime time.Duration // expire = release + TaskLifetime

	Seed int64
}

// DefaultSynthConfig returns a small city-scale scenario.
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		Workers:      50,
		Tasks:        200,
		CenterLat:    30.66,
		CenterLon:    104.06,
		RadiusKm:     8,
		Start:        time.Date(2020, 11, 1, 8, 0, 0, 0, time.UTC),
		Window:       2 * time.Hour,
		WorkerShift:  8 * time.Hour,
		TaskLifetime: time.Hour,
		Seed:         1,
	}
}

// Generate produces canonical records from the config. The same seed and
// config always produce the same records.
func Generate(cfg SynthConfig) ([]types.WorkerRecord, []types.TaskRecord) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	workers := make([]types.WorkerRecord, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		lat, lon := jitter(rng, cfg)
		release := cfg.Start.Add(time.Duration(rng.Int63n(int64(cfg.Window))))
		workers = append(workers, types.WorkerRecord{
			ID:          types.WorkerID(fmt.Sprintf("w%d", i)),
			StartLat:    lat,
			StartLon:    lon,
			ReleaseTime: release,
			Deadline:    release.Add(cfg.WorkerShift),
		})
	}

	tasks := make([]types.TaskRecord, 0, cfg.Tasks)
	for i := 0; i < cfg.Tasks; i++ {
		pickLat, pickLon := jitter(rng, cfg)
		dropLat, dropLon := jitter(rng, cfg)
		release := cfg.Start.Add(time.Duration(rng.Int63n(int64(cfg.Window))))
		tasks = append(tasks, types.TaskRecord{
			ID:          types.TaskID(fmt.Sprintf("t%d", i)),
			PickupLat:   pickLat,
			PickupLon:   pickLon,
			DropoffLat:  dropLat,
			DropoffLon:  dropLon,
			ReleaseTime: release,
			ExpireTime:  release.Add(cfg.TaskLifetime),
		})
	}

	return workers, tasks
}

// jitter draws a point uniformly within the configured radius, converting
// kilometres back to degrees with the same planar approximation the
// simulator distances use.
func jitter(rng *rand.Rand, cfg SynthConfig) (lat, lon float64) {
	dLatKm := (rng.Float64()*2 - 1) * cfg.RadiusKm
	dLonKm := (rng.Float64()*2 - 1) * cfg.RadiusKm
	lat = cfg.CenterLat + dLatKm/geo.KmPerDegree
	lon = cfg.CenterLon + dLonKm/(geo.KmPerDegree*cosDeg(cfg.CenterLat))
	return lat, lon
}

func cosDeg(deg float64) float64 {
	// Guard against degenerate polar centres; the generator targets cities.
	c := math.Cos(deg * math.Pi / 180)
	if c < 0.01 {
		c = 0.01
	}
	return c
}

// WriteWorkersCSV writes records in the canonical worker format.
func WriteWorkersCSV(path string, records []types.WorkerRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, workerHeader)
	for _, r := range records {
		rows = append(rows, []string{
			string(r.ID),
			formatCoord(r.StartLat),
			formatCoord(r.StartLon),
			r.ReleaseTime.UTC().Format(time.RFC3339),
			r.Deadline.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV(path, rows)
}

// WriteTasksCSV writes records in the canonical task format.
func WriteTasksCSV(path string, records []types.TaskRecord) error {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, taskHeader)
	for _, r := range records {
		rows = append(rows, []string{
			string(r.ID),
			formatCoord(r.PickupLat),
			formatCoord(r.PickupLon),
			formatCoord(r.DropoffLat),
			formatCoord(r.DropoffLon),
			r.ReleaseTime.UTC().Format(time.RFC3339),
			r.ExpireTime.UTC().Format(time.RFC3339),
		})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write dataset file: %w", err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
