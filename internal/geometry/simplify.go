package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Simplifier reduces the vertex count of a multipolygon. tolerance is in the
// geometry's coordinate unit.
type Simplifier interface {
	Simplify(mp *geom.MultiPolygon, tolerance float64) (*geom.MultiPolygon, error)
}

// Simplifier methods.
const (
	MethodTopology    = "topology"
	MethodVisvalingam = "visvalingam"
)

// NewSimplifier returns the simplifier for a method name.
func NewSimplifier(method string) (Simplifier, error) {
	switch method {
	case MethodTopology, "":
		return TopologySimplifier{}, nil
	case MethodVisvalingam:
		return VisvalingamSimplifier{}, nil
	}
	return nil, eris.Errorf("geometry: unknown simplifier %q", method)
}

// VisvalingamSimplifier removes vertices whose effective triangle area is
// below tolerance². Rings keep at least four points, and a shell that would
// degenerate is kept as is.
type VisvalingamSimplifier struct{}

// Simplify implements Simplifier.
func (VisvalingamSimplifier) Simplify(mp *geom.MultiPolygon, tolerance float64) (*geom.MultiPolygon, error) {
	if tolerance <= 0 {
		return mp, nil
	}
	s := simplify.Visvalingam(tolerance*tolerance, 4)

	coords := mp.Coords()
	out := make([][][]geom.Coord, 0, len(coords))
	for _, poly := range coords {
		rings := make([][]geom.Coord, 0, len(poly))
		for j, ring := range poly {
			simplified := fromOrbRing(s.Ring(toOrbRing(ring)))
			if len(simplified) < 4 {
				if j == 0 {
					simplified = ring
				} else {
					continue
				}
			}
			rings = append(rings, simplified)
		}
		out = append(out, rings)
	}

	res, err := geom.NewMultiPolygon(geom.XY).SetCoords(out)
	if err != nil {
		return nil, eris.Wrapf(ErrGeometry, "visvalingam: %v", err)
	}
	return res, nil
}

func toOrbRing(ring []geom.Coord) orb.Ring {
	r := make(orb.Ring, len(ring))
	for i, c := range ring {
		r[i] = orb.Point{c.X(), c.Y()}
	}
	return r
}

func fromOrbRing(r orb.Ring) []geom.Coord {
	out := make([]geom.Coord, 0, len(r)+1)
	for _, p := range r {
		out = append(out, geom.Coord{p[0], p[1]})
	}
	if len(out) > 0 && (out[0][0] != out[len(out)-1][0] || out[0][1] != out[len(out)-1][1]) {
		out = append(out, out[0])
	}
	return out
}
