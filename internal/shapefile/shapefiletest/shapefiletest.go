// Package shapefiletest writes small polygon shapefile datasets for tests.
package shapefiletest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
)

// WGS84 is a geographic .prj content.
const WGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Lambert93 is a projected .prj content (meters).
const Lambert93 = `PROJCS["RGF_1993_Lambert_93",GEOGCS["GCS_RGF_1993",DATUM["D_RGF_1993",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Lambert_Conformal_Conic"],UNIT["Meter",1.0]]`

// Feature is a polygon with its attribute values, in field order.
type Feature struct {
	Rings  [][][2]float64
	Values []string
}

// Square returns a closed clockwise ring (a shapefile outer ring).
func Square(x, y, size float64) [][2]float64 {
	return [][2]float64{{x, y}, {x, y + size}, {x + size, y + size}, {x + size, y}, {x, y}}
}

// Hole returns a closed counter-clockwise ring (a shapefile inner ring).
func Hole(x, y, size float64) [][2]float64 {
	return [][2]float64{{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y}}
}

// Write creates dir/name.{shp,shx,dbf,cpg} and, when prj is non-empty,
// dir/name.prj.
func Write(t testing.TB, dir, name string, fields []string, features []Feature, prj string) {
	t.Helper()

	w, err := shp.Create(filepath.Join(dir, name+".shp"), shp.POLYGON)
	if err != nil {
		t.Fatalf("create shapefile: %v", err)
	}

	shpFields := make([]shp.Field, len(fields))
	for i, f := range fields {
		shpFields[i] = shp.StringField(f, 80)
	}
	if err := w.SetFields(shpFields); err != nil {
		t.Fatalf("set fields: %v", err)
	}

	for _, f := range features {
		parts := make([][]shp.Point, len(f.Rings))
		for i, ring := range f.Rings {
			for _, c := range ring {
				parts[i] = append(parts[i], shp.Point{X: c[0], Y: c[1]})
			}
		}
		poly := shp.Polygon(*shp.NewPolyLine(parts))
		row := w.Write(&poly)
		for i, v := range f.Values {
			if err := w.WriteAttribute(int(row), i, v); err != nil {
				t.Fatalf("write attribute: %v", err)
			}
		}
	}
	w.Close()

	if err := os.WriteFile(filepath.Join(dir, name+".cpg"), []byte("UTF-8"), 0o644); err != nil {
		t.Fatalf("write cpg: %v", err)
	}
	if prj != "" {
		if err := os.WriteFile(filepath.Join(dir, name+".prj"), []byte(prj), 0o644); err != nil {
			t.Fatalf("write prj: %v", err)
		}
	}
}
