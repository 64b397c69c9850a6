package shapefile

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// Record is one shape of a dataset with its attributes. Attribute names are
// lower-cased.
type Record struct {
	Index      int
	Geometry   *geom.MultiPolygon
	Attributes map[string]string
}

// Attr returns the first non-empty attribute among names.
func (r Record) Attr(names ...string) string {
	for _, n := range names {
		if v := r.Attributes[strings.ToLower(n)]; v != "" {
			return v
		}
	}
	return ""
}

// Dataset is the content of a shapefile dataset.
type Dataset struct {
	Source Source
	// Geographic reports whether coordinates are longitude/latitude degrees,
	// from the .prj file or, without one, from the bounding box.
	Geographic bool
	Records    []Record
}

// Read loads every record of a polygon dataset. Null or non-polygon shapes
// are errors: a boundary dataset with holes in it is not usable.
func Read(src Source) (*Dataset, error) {
	if err := src.Check(); err != nil {
		return nil, err
	}

	prj, err := src.readOptional(".prj")
	if err != nil {
		return nil, err
	}
	cpg, err := src.readOptional(".cpg")
	if err != nil {
		return nil, err
	}
	enc, err := charsetDecoder(string(cpg))
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(src.Path(".shp"))
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", src.Path(".shp"))
	}
	defer func() { _ = reader.Close() }()

	// Build field name -> index map.
	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimRight(f.String(), "\x00"))
	}

	ds := &Dataset{Source: src}
	if prj != nil {
		ds.Geographic = isGeographicWKT(string(prj))
	} else {
		ds.Geographic = isGeographicBox(reader.BBox())
	}

	var droppedRings int
	for reader.Next() {
		n, shape := reader.Shape()

		mp, dropped, err := toMultiPolygon(shape)
		if err != nil {
			return nil, eris.Wrapf(err, "shapefile: %s record %d", src.Name, n)
		}
		droppedRings += dropped

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			v, err := decodeAttribute(reader.Attribute(i), enc, cpg != nil)
			if err != nil {
				return nil, eris.Wrapf(err, "shapefile: %s record %d field %s", src.Name, n, name)
			}
			attrs[name] = v
		}

		ds.Records = append(ds.Records, Record{Index: n, Geometry: mp, Attributes: attrs})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", src.Path(".shp"))
	}

	if droppedRings > 0 {
		zap.L().Debug("shapefile: dropped degenerate rings",
			zap.String("dataset", src.Name),
			zap.Int("rings", droppedRings),
		)
	}

	return ds, nil
}

func isGeographicWKT(wkt string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(wkt)), "GEOGCS")
}

func isGeographicBox(b shp.Box) bool {
	return b.MinX >= -180 && b.MaxX <= 180 && b.MinY >= -90 && b.MaxY <= 90
}

// toMultiPolygon converts a polygon shape. Elevation and measure values are
// dropped. Returns the number of rings dropped for having fewer than four
// points.
func toMultiPolygon(shape shp.Shape) (*geom.MultiPolygon, int, error) {
	var parts []int32
	var points []shp.Point

	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	case nil, *shp.Null:
		return nil, 0, eris.New("null shape")
	default:
		return nil, 0, eris.Errorf("unsupported shape type %T", shape)
	}

	mp, dropped, err := ringsToMultiPolygon(parts, points)
	if err != nil {
		return nil, dropped, err
	}
	if mp.NumPolygons() == 0 {
		return nil, dropped, eris.New("empty polygon")
	}
	return mp, dropped, nil
}

// ringsToMultiPolygon assembles shapefile rings into polygons. Shapefiles
// store outer rings clockwise and holes counter-clockwise; a hole belongs to
// the outer ring preceding it.
func ringsToMultiPolygon(parts []int32, points []shp.Point) (*geom.MultiPolygon, int, error) {
	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon
	var dropped int

	flush := func() error {
		if current == nil {
			return nil
		}
		if err := mp.Push(current); err != nil {
			return eris.Wrap(err, "push polygon")
		}
		current = nil
		return nil
	}

	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || end > len(points) || start >= end {
			return nil, dropped, eris.Errorf("invalid part %d bounds [%d, %d)", i, start, end)
		}
		if end-start < 4 {
			dropped++
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if current == nil || !xy.IsRingCounterClockwise(geom.XY, flat) {
			if err := flush(); err != nil {
				return nil, dropped, err
			}
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			return nil, dropped, eris.Wrapf(err, "push ring %d", i)
		}
	}
	if err := flush(); err != nil {
		return nil, dropped, err
	}
	return mp, dropped, nil
}
