// Package matcher assigns vehicle detections to parking spots by rectangle
// overlap.  Everything here is a pure function of its inputs.
package matcher

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"github.com/iliyamo/fleet-parking-monitor/internal/model"
	"github.com/iliyamo/fleet-parking-monitor/internal/registry"
)

// Threshold is the fraction of the bounding box that must lie inside a spot
// for the detection to count as parked there.  The comparison is strict.
const Threshold = 0.30

func toR2(r model.Rect) r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: r.X1, Hi: r.X2},
		Y: r1.Interval{Lo: r.Y1, Hi: r.Y2},
	}
}

// OverlapRatio is area(bbox ∩ spot) / area(bbox).  It is 0 when the
// intersection has no positive width or height, and 0 for a degenerate box.
func OverlapRatio(bbox model.BBox, spot model.Rect) float64 {
	b := toR2(bbox.Rect())
	boxSize := b.Size()
	boxArea := boxSize.X * boxSize.Y
	if boxSize.X <= 0 || boxSize.Y <= 0 || boxArea <= 0 {
		return 0
	}
	inter := b.Intersection(toR2(spot))
	if inter.IsEmpty() {
		return 0
	}
	sz := inter.Size()
	if sz.X <= 0 || sz.Y <= 0 {
		return 0
	}
	return (sz.X * sz.Y) / boxArea
}

// Match returns the first spot, in registry order, whose overlap ratio with
// bbox exceeds Threshold.  Later spots are not considered once one
// qualifies, even if they overlap more; the result is therefore stable for
// a fixed registry.
func Match(bbox model.BBox, reg *registry.Registry) (string, bool) {
	for _, s := range reg.All() {
		if OverlapRatio(bbox, s.Geometry) > Threshold {
			return s.ID, true
		}
	}
	return "", false
}
