// Package timeline implements the interactive state machine for drawing,
// moving and resizing administration bars on a per-medication timeline
// grid. Geometry is kept in percentages of the total grid width so bars
// survive window resizes; snapping aligns everything to quarter-hour
// intervals.
package timeline

import (
	"math"
	"time"

	"github.com/ifsi-tools/dossier-api/dossier"
)

// The prescription grid spans eleven days at quarter-hour granularity.
// The vitals charts use a different grid (day x morning/evening/night)
// with its own snapping unit; they never share constants with this one.
const (
	GridDays        = dossier.GridDays
	HoursPerDay     = 24
	QuartersPerHour = 4
	SnapIntervals   = GridDays * HoursPerDay * QuartersPerHour
)

// Grid converts between pixel positions and snapped percentages for one
// rendered timeline of a known pixel width.
type Grid struct {
	WidthPx float64
}

// SnapUnit returns the width of one snap interval in percent.
func (g Grid) SnapUnit() float64 {
	return 100.0 / float64(SnapIntervals)
}

// Snap rounds a percentage to the nearest snap interval boundary. Snapping
// is idempotent: snapping an already snapped value is a no-op.
func (g Grid) Snap(percent float64) float64 {
	unit := g.SnapUnit()
	return math.Round(percent/unit) * unit
}

// PercentAt converts a pixel x position to a raw (unsnapped) percentage of
// the grid width, clamped to [0, 100].
func (g Grid) PercentAt(px float64) float64 {
	if g.WidthPx <= 0 {
		return 0
	}
	p := px / g.WidthPx * 100
	return clamp(p, 0, 100)
}

// TimeAt converts a percentage of the grid into an absolute timestamp,
// anchored at local midnight of the entry date and rounded to the nearest
// quarter hour.
func (g Grid) TimeAt(entryDate time.Time, percent float64) time.Time {
	start := dossier.DateFromOffset(entryDate, 0)
	span := time.Duration(GridDays) * 24 * time.Hour
	elapsed := time.Duration(percent / 100 * float64(span))
	return dossier.RoundToQuarterHour(start.Add(elapsed))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
