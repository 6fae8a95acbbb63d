package scheduler

import (
	"math"
	"time"

	"github.com/turbotelescope/turbo/lib/astro"
)

// minimum altitude in degrees, regardless of the airmass limit
const altitudeFloor = 10

// FilterVisible removes targets that are not currently observable:
// outside twilight everything is invisible, otherwise targets below
// the altitude implied by the airmass limit are dropped.
func FilterVisible(targets []Target, loc astro.Location, zenith float64, maxAirmass float64, now time.Time) []Target {
	if !loc.IsNight(now, zenith) {
		return nil
	}
	if maxAirmass <= 1 {
		maxAirmass = 2
	}
	minAltitude := math.Max(90-astro.RadToDeg*math.Acos(1/maxAirmass), altitudeFloor)

	var visible []Target
	for _, target := range targets {
		alt, _ := loc.Horizontal(target.Ra, target.Dec, now)
		if alt >= minAltitude {
			visible = append(visible, target)
		}
	}
	return visible
}
