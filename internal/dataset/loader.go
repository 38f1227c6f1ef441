// Package dataset loads canonical worker and task records from CSV files and
// validates them before a run. Translation of raw telemetry into the
// canonical format happens upstream; the simulator only ever sees these two
// files. Any integrity problem is fatal at startup — there is no partial run.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/crowdsim/crowdsim/pkg/types"
)

// ErrDataIntegrity wraps every record-level validation failure.
var ErrDataIntegrity = errors.New("data integrity error")

// Canonical CSV headers.
var (
	workerHeader = []string{"worker_id", "start_lat", "start_lon", "release_time", "deadline"}
	taskHeader   = []string{"task_id", "pickup_lat", "pickup_lon", "dropoff_lat", "dropoff_lon", "release_time", "expire_time"}
)

// Load reads and validates both canonical files, preserving file order.
func Load(workersPath, tasksPath string) ([]types.WorkerRecord, []types.TaskRecord, error) {
	workers, err := LoadWorkers(workersPath)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := LoadTasks(tasksPath)
	if err != nil {
		return nil, nil, err
	}
	return workers, tasks, nil
}

// LoadWorkers reads the canonical worker file
// (worker_id,start_lat,start_lon,release_time,deadline).
func LoadWorkers(path string) ([]types.WorkerRecord, error) {
	rows, err := readCSV(path, workerHeader)
	if err != nil {
		return nil, err
	}

	seen := make(map[types.WorkerID]bool, len(rows))
	records := make([]types.WorkerRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseWorkerRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("%s row %d: %w: duplicate worker_id %q", path, i+2, ErrDataIntegrity, rec.ID)
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, nil
}

// LoadTasks reads the canonical task file
// (task_id,pickup_lat,pickup_lon,dropoff_lat,dropoff_lon,release_time,expire_time).
func LoadTasks(path string) ([]types.TaskRecord, error) {
	rows, err := readCSV(path, taskHeader)
	if err != nil {
		return nil, err
	}

	seen := make(map[types.TaskID]bool, len(rows))
	records := make([]types.TaskRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := parseTaskRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("%s row %d: %w: duplicate task_id %q", path, i+2, ErrDataIntegrity, rec.ID)
		}
		seen[rec.ID] = true
		records = append(records, rec)
	}
	return records, nil
}

func parseWorkerRow(row []string) (types.WorkerRecord, error) {
	var rec types.WorkerRecord

	id := row[0]
	if id == "" {
		return rec, fmt.Errorf("%w: missing worker_id", ErrDataIntegrity)
	}
	lat, err := parseCoord("start_lat", row[1], 90)
	if err != nil {
		return rec, err
	}
	lon, err := parseCoord("start_lon", row[2], 180)
	if err != nil {
		return rec, err
	}
	release, err := parseTimestamp("release_time", row[3])
	if err != nil {
		return rec, err
	}
	deadline, err := parseTimestamp("deadline", row[4])
	if err != nil {
		return rec, err
	}
	if deadline.Before(release) {
		return rec, fmt.Errorf("%w: deadline precedes release_time", ErrDataIntegrity)
	}

	rec = types.WorkerRecord{
		ID:          types.WorkerID(id),
		StartLat:    lat,
		StartLon:    lon,
		ReleaseTime: release,
		Deadline:    deadline,
	}
	return rec, nil
}

func parseTaskRow(row []string) (types.TaskRecord, error) {
	var rec types.TaskRecord

	id := row[0]
	if id == "" {
		return rec, fmt.Errorf("%w: missing task_id", ErrDataIntegrity)
	}
	pickLat, err := parseCoord("pickup_lat", row[1], 90)
	if err != nil {
		return rec, err
	}
	pickLon, err := parseCoord("pickup_lon", row[2], 180)
	if err != nil {
		return rec, err
	}
	dropLat, err := parseCoord("dropoff_lat", row[3], 90)
	if err != nil {
		return rec, err
	}
	dropLon, err := parseCoord("dropoff_lon", row[4], 180)
	if err != nil {
		return rec, err
	}
	release, err := parseTimestamp("release_time", row[5])
	if err != nil {
		return rec, err
	}
	expire, err := parseTimestamp("expire_time", row[6])
	if err != nil {
		return rec, err
	}
	if expire.Before(release) {
		return rec, fmt.Errorf("%w: expire_time precedes release_time", ErrDataIntegrity)
	}

	rec = types.TaskRecord{
		ID:          types.TaskID(id),
		PickupLat:   pickLat,
		PickupLon:   pickLon,
		DropoffLat:  dropLat,
		DropoffLon:  dropLon,
		ReleaseTime: release,
		ExpireTime:  expire,
	}
	return rec, nil
}

func parseCoord(field, raw string, bound float64) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrDataIntegrity, field)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrDataIntegrity, field, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite %s", ErrDataIntegrity, field)
	}
	if v < -bound || v > bound {
		return 0, fmt.Errorf("%w: %s %v out of range [%v,%v]", ErrDataIntegrity, field, v, -bound, bound)
	}
	return v, nil
}

func parseTimestamp(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrDataIntegrity, field)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid %s %q (want RFC 3339)", ErrDataIntegrity, field, raw)
	}
	return ts, nil
}

func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrDataIntegrity, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w: empty file", path, ErrDataIntegrity)
	}
	for i, want := range header {
		if rows[0][i] != want {
			return nil, fmt.Errorf("%s: %w: header column %d is %q, want %q", path, ErrDataIntegrity, i, rows[0][i], want)
		}
	}
	return rows[1:], nil
}
