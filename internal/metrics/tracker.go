package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/crowdsim/crowdsim/internal/pool"
)

// Tracker accumulates one snapshot per tick for later export.
type Tracker struct {
	records []Snapshot
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Snapshot captures the current state, appends it, and returns it.
func (tr *Tracker) Snapshot(pools *pool.Manager, now time.Time) Snapshot {
	snap := Capture(pools, now)
	tr.records = append(tr.records, snap)
	return snap
}

// Records returns the accumulated snapshots in tick order.
func (tr *Tracker) Records() []Snapshot {
	return tr.records
}

// WriteCSV exports the accumulated snapshots, one row per tick.
func (tr *Tracker) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"time", "backlog", "assigned", "completed_total",
		"jfi", "utility_spread", "avg_task_age_min",
		"fairness_mean", "fairness_p90", "fairness_max",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write metrics header: %w", err)
	}

	for _, s := range tr.records {
		row := []string{
			s.Time.UTC().Format(time.RFC3339),
			strconv.Itoa(s.Backlog),
			strconv.Itoa(s.Assigned),
			strconv.Itoa(s.CompletedTotal),
			formatFloat(s.JFI),
			formatFloat(s.UtilitySpread),
			formatFloat(s.MeanTaskAgeMin),
			formatFloat(s.FairnessMean),
			formatFloat(s.FairnessP90),
			formatFloat(s.FairnessMax),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write metrics row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush metrics file: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
