package geometry

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func square(x, y, size float64) *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y},
	}}})
}

func TestPrecision(t *testing.T) {
	tests := []struct {
		interval int
		want     int
	}{
		{1, 6}, {5, 6}, {9, 6},
		{10, 5}, {50, 5}, {99, 5},
		{100, 4}, {999, 4},
		{1000, 3}, {5000, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Precision(tt.interval), "interval %d", tt.interval)
	}
}

func TestPrecision_Monotonic(t *testing.T) {
	prev := Precision(1)
	for i := 2; i <= 5000; i++ {
		p := Precision(i)
		assert.LessOrEqual(t, p, prev, "interval %d", i)
		prev = p
	}
}

func TestTolerance(t *testing.T) {
	assert.InDelta(t, 100.0, Tolerance(100, false), 1e-12)
	assert.InDelta(t, 1000.0/MetersPerDegree, Tolerance(1000, true), 1e-12)
}

func TestTruncate(t *testing.T) {
	src := geom.NewMultiPolygon(geom.XYZ).MustSetCoords([][][]geom.Coord{{{
		{2.123456789, 48.987654321, 35},
		{2.123456789, 49.000000001, 35},
		{2.2, 49.000000001, 35},
		{2.123456789, 48.987654321, 35},
	}}})
	before := src.FlatCoords()[0]

	out := Truncate(src, 3)

	assert.Equal(t, geom.XY, out.Layout())
	assert.Equal(t, []float64{
		2.123, 48.988,
		2.123, 49,
		2.2, 49,
		2.123, 48.988,
	}, out.FlatCoords())
	// The source is not modified.
	assert.Equal(t, geom.XYZ, src.Layout())
	assert.Equal(t, before, src.FlatCoords()[0])
}

func TestTruncate_SixDigits(t *testing.T) {
	out := Truncate(square(0.1234567, 0.7654321, 1), 6)
	assert.InDelta(t, 0.123457, out.FlatCoords()[0], 1e-12)
	assert.InDelta(t, 0.765432, out.FlatCoords()[1], 1e-12)
}

func TestCompact(t *testing.T) {
	one := square(0, 0, 1)
	_, ok := Compact(one).(*geom.Polygon)
	assert.True(t, ok)

	two := square(0, 0, 1)
	require.NoError(t, two.Push(square(5, 5, 1).Polygon(0)))
	_, ok = Compact(two).(*geom.MultiPolygon)
	assert.True(t, ok)
}

func TestUnion_AdjacentSquaresDissolve(t *testing.T) {
	out, err := Union([]*geom.MultiPolygon{square(0, 0, 1), square(1, 0, 1)})
	require.NoError(t, err)

	assert.Equal(t, 1, out.NumPolygons())
	assert.InDelta(t, 2.0, out.Area(), 1e-9)
	assert.Equal(t, 1, out.Polygon(0).NumLinearRings())
}

func TestUnion_DisjointSquaresStayApart(t *testing.T) {
	out, err := Union([]*geom.MultiPolygon{square(0, 0, 1), square(3, 0, 1)})
	require.NoError(t, err)

	assert.Equal(t, 2, out.NumPolygons())
	assert.InDelta(t, 2.0, out.Area(), 1e-9)
}

func TestUnion_OverlappingSquares(t *testing.T) {
	out, err := Union([]*geom.MultiPolygon{square(0, 0, 2), square(1, 1, 2)})
	require.NoError(t, err)

	assert.Equal(t, 1, out.NumPolygons())
	assert.InDelta(t, 7.0, out.Area(), 1e-9)
}

func TestUnion_Empty(t *testing.T) {
	_, err := Union(nil)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrGeometry))
}

func numCoords(mp *geom.MultiPolygon) int {
	return len(mp.FlatCoords()) / mp.Stride()
}

// jagged returns a 10x10 square whose edges carry small zig-zags.
func jagged() *geom.MultiPolygon {
	return geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{{{
		{0, 0}, {0, 5}, {0.01, 5.5}, {0, 6}, {0, 10},
		{5, 10}, {5.5, 10.01}, {6, 10}, {10, 10},
		{10, 0}, {0, 0},
	}}})
}

func TestTopologySimplifier(t *testing.T) {
	in := jagged()
	out, err := TopologySimplifier{}.Simplify(in, 0.1)
	require.NoError(t, err)

	assert.Less(t, numCoords(out), numCoords(in))
	assert.InDelta(t, 100.0, out.Area(), 0.1)
	// Input is untouched.
	assert.Equal(t, 11, numCoords(in))
}

func TestTopologySimplifier_ZeroTolerance(t *testing.T) {
	in := jagged()
	out, err := TopologySimplifier{}.Simplify(in, 0)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestVisvalingamSimplifier(t *testing.T) {
	in := jagged()
	out, err := VisvalingamSimplifier{}.Simplify(in, 0.5)
	require.NoError(t, err)

	assert.Less(t, numCoords(out), numCoords(in))
	ring := out.Polygon(0).LinearRing(0)
	assert.GreaterOrEqual(t, ring.NumCoords(), 4)
	assert.Equal(t, ring.Coord(0), ring.Coord(ring.NumCoords()-1))
}

func TestVisvalingamSimplifier_KeepsDegenerateShell(t *testing.T) {
	in := square(0, 0, 0.001)
	out, err := VisvalingamSimplifier{}.Simplify(in, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, out.NumPolygons())
	assert.GreaterOrEqual(t, out.Polygon(0).LinearRing(0).NumCoords(), 4)
}

func TestNewSimplifier(t *testing.T) {
	s, err := NewSimplifier(MethodTopology)
	require.NoError(t, err)
	assert.IsType(t, TopologySimplifier{}, s)

	s, err = NewSimplifier(MethodVisvalingam)
	require.NoError(t, err)
	assert.IsType(t, VisvalingamSimplifier{}, s)

	_, err = NewSimplifier("mapshaper")
	assert.Error(t, err)
}
