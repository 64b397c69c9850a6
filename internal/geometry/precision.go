// Package geometry wraps the geometry engines used by the build: GEOS for
// dissolve and topology-preserving simplification, orb for Visvalingam
// simplification, and go-geom as the shared geometry model.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

// MetersPerDegree converts a distance in meters to degrees of latitude.
const MetersPerDegree = 111320.0

// Precision returns the number of decimal digits kept for coordinates
// written at the given simplification interval (meters).
func Precision(interval int) int {
	switch {
	case interval < 10:
		return 6
	case interval < 100:
		return 5
	case interval < 1000:
		return 4
	default:
		return 3
	}
}

// Tolerance converts a simplification interval in meters to the dataset's
// coordinate unit.
func Tolerance(interval int, geographic bool) float64 {
	t := float64(interval)
	if geographic {
		t /= MetersPerDegree
	}
	return t
}

// Truncate returns a two-dimensional copy of mp with every coordinate rounded
// to digits decimals. mp is left untouched.
func Truncate(mp *geom.MultiPolygon, digits int) *geom.MultiPolygon {
	factor := math.Pow10(digits)
	round := func(v float64) float64 {
		return math.Round(v*factor) / factor
	}

	coords := mp.Coords()
	out := make([][][]geom.Coord, len(coords))
	for i, poly := range coords {
		out[i] = make([][]geom.Coord, len(poly))
		for j, ring := range poly {
			out[i][j] = make([]geom.Coord, len(ring))
			for k, c := range ring {
				out[i][j][k] = geom.Coord{round(c.X()), round(c.Y())}
			}
		}
	}
	return geom.NewMultiPolygon(geom.XY).MustSetCoords(out)
}

// Compact returns the single polygon of a one-part multipolygon, or mp
// itself.
func Compact(mp *geom.MultiPolygon) geom.T {
	if mp.NumPolygons() == 1 {
		return mp.Polygon(0)
	}
	return mp
}
