package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"
)

// ErrGeometry is returned when the geometry engine fails or produces an
// unusable result.
var ErrGeometry = eris.New("geometry: engine failure")

// Union dissolves the polygons of every input into one multipolygon. The
// result depends only on the order of inputs, so callers wanting
// order-independent output must sort them first.
func Union(mps []*geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if len(mps) == 0 {
		return nil, eris.Wrap(ErrGeometry, "union of nothing")
	}

	gc := geom.NewGeometryCollection()
	for _, mp := range mps {
		for i := 0; i < mp.NumPolygons(); i++ {
			if err := gc.Push(mp.Polygon(i)); err != nil {
				return nil, eris.Wrap(err, "geometry: collect polygons")
			}
		}
	}

	return withGEOS("union", gc, func(g *geos.Geom) *geos.Geom {
		return g.UnaryUnion()
	})
}

// TopologySimplifier simplifies with GEOS' topology-preserving
// Douglas-Peucker, which never collapses or self-intersects a polygon.
type TopologySimplifier struct{}

// Simplify implements Simplifier.
func (TopologySimplifier) Simplify(mp *geom.MultiPolygon, tolerance float64) (*geom.MultiPolygon, error) {
	if tolerance <= 0 {
		return mp, nil
	}
	return withGEOS("simplify", mp, func(g *geos.Geom) *geos.Geom {
		return g.TopologyPreserveSimplify(tolerance)
	})
}

// withGEOS runs op on a GEOS copy of g in a dedicated context and converts
// the result back. go-geos panics on GEOS errors; they are returned as
// ErrGeometry.
func withGEOS(name string, g geom.T, op func(*geos.Geom) *geos.Geom) (result *geom.MultiPolygon, err error) {
	data, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: %s: encode wkb", name)
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = eris.Wrapf(ErrGeometry, "%s: %v", name, r)
		}
	}()

	gctx := geos.NewContext()
	in, err := gctx.NewGeomFromWKB(data)
	if err != nil {
		return nil, eris.Wrapf(ErrGeometry, "%s: read wkb: %v", name, err)
	}
	out := op(in)
	if out == nil || out.IsEmpty() {
		return nil, eris.Wrapf(ErrGeometry, "%s: empty result", name)
	}

	t, err := wkb.Unmarshal(out.ToWKB())
	if err != nil {
		return nil, eris.Wrapf(ErrGeometry, "%s: decode wkb: %v", name, err)
	}
	return toMultiPolygon(name, t)
}

// toMultiPolygon keeps the polygonal part of an engine result. Lines and
// points left over by a dissolve are slivers and are dropped.
func toMultiPolygon(name string, t geom.T) (*geom.MultiPolygon, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	var push func(t geom.T) error
	push = func(t geom.T) error {
		switch g := t.(type) {
		case *geom.Polygon:
			if g.Empty() {
				return nil
			}
			return mp.Push(g)
		case *geom.MultiPolygon:
			for i := 0; i < g.NumPolygons(); i++ {
				if err := push(g.Polygon(i)); err != nil {
					return err
				}
			}
		case *geom.GeometryCollection:
			for _, c := range g.Geoms() {
				if err := push(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := push(t); err != nil {
		return nil, eris.Wrapf(ErrGeometry, "%s: %v", name, err)
	}
	if mp.NumPolygons() == 0 {
		return nil, eris.Wrapf(ErrGeometry, "%s: no polygon in result", name)
	}
	return mp, nil
}
