// Package geo contains the distance and travel-time approximations shared by
// every matching strategy. Distances are a closed-form planar approximation,
// not a road-network route.
package geo

import (
	"math"
	"time"

	"github.com/crowdsim/crowdsim/pkg/types"
)

const (
	// KmPerDegree approximates the kilometres spanned by one degree of
	// latitude.
	KmPerDegree = 111.0

	// AvgSpeedKmh is the fixed travel speed used to turn distances into
	// service durations.
	AvgSpeedKmh = 30.0
)

// ManhattanKm returns the Manhattan-sum distance in kilometres between two
// coordinates: the latitude and longitude deltas are converted to kilometres
// independently and added, with the longitude axis scaled by the cosine of
// the mean latitude.
func ManhattanKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := math.Abs(lat1-lat2) * KmPerDegree
	meanLat := (lat1 + lat2) / 2
	dLon := math.Abs(lon1-lon2) * KmPerDegree * math.Cos(meanLat*math.Pi/180)
	return dLat + dLon
}

// TravelTime converts a total distance into a service duration at the fixed
// average speed.
func TravelTime(distKm float64) time.Duration {
	hours := distKm / AvgSpeedKmh
	return time.Duration(hours * float64(time.Hour))
}

// PickupKm returns the distance from the worker's current position to the
// task's pickup point.
func PickupKm(w *types.Worker, t *types.Task) float64 {
	return ManhattanKm(w.Lat, w.Lon, t.PickupLat, t.PickupLon)
}

// DropKm returns the distance from the task's pickup point to its dropoff
// point.
func DropKm(t *types.Task) float64 {
	return ManhattanKm(t.PickupLat, t.PickupLon, t.DropoffLat, t.DropoffLon)
}

// FinishETA projects when the worker would finish the task if assigned now:
// travel to the pickup plus the pickup-to-dropoff leg.
func FinishETA(now time.Time, pickupKm, dropKm float64) time.Time {
	return now.Add(TravelTime(pickupKm + dropKm))
}

// Feasible reports whether the pair can be served in time: the projected
// finish must respect both the worker's deadline and the task's expiry.
// Infeasible pairs are excluded from candidacy entirely, never scored.
func Feasible(w *types.Worker, t *types.Task, now time.Time) bool {
	eta := FinishETA(now, PickupKm(w, t), DropKm(t))
	return FeasibleETA(w, t, eta)
}

// FeasibleETA is the feasibility check for a precomputed finish projection.
func FeasibleETA(w *types.Worker, t *types.Task, eta time.Time) bool {
	return !eta.After(w.Deadline) && !eta.After(t.ExpireTime)
}
