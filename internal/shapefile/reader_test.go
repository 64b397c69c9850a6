package shapefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/contours-admin/internal/shapefile/shapefiletest"
)

func TestRead_CommuneDataset(t *testing.T) {
	dir := t.TempDir()
	shapefiletest.Write(t, dir, "COMMUNE",
		[]string{"INSEE_COM", "NOM", "INSEE_DEP", "INSEE_REG"},
		[]shapefiletest.Feature{
			{Rings: [][][2]float64{shapefiletest.Square(2.0, 48.0, 0.1)}, Values: []string{"75056", "Paris", "75", "11"}},
			{Rings: [][][2]float64{shapefiletest.Square(2.1, 48.0, 0.1)}, Values: []string{"92012", "Boulogne-Billancourt", "92", "11"}},
		},
		shapefiletest.WGS84,
	)

	ds, err := Read(Source{Dir: dir, Name: "COMMUNE"})
	require.NoError(t, err)

	assert.True(t, ds.Geographic)
	require.Len(t, ds.Records, 2)

	r := ds.Records[0]
	assert.Equal(t, "75056", r.Attr("INSEE_COM"))
	assert.Equal(t, "Paris", r.Attr("nom"))
	assert.Equal(t, "11", r.Attr("INSEE_REG"))
	require.NotNil(t, r.Geometry)
	assert.Equal(t, 1, r.Geometry.NumPolygons())
	assert.InDelta(t, 0.01, r.Geometry.Area(), 1e-9)
}

func TestRead_ProjectedDataset(t *testing.T) {
	dir := t.TempDir()
	shapefiletest.Write(t, dir, "COMMUNE",
		[]string{"INSEE_COM"},
		[]shapefiletest.Feature{
			{Rings: [][][2]float64{shapefiletest.Square(650000, 6860000, 1000)}, Values: []string{"75056"}},
		},
		shapefiletest.Lambert93,
	)

	ds, err := Read(Source{Dir: dir, Name: "COMMUNE"})
	require.NoError(t, err)
	assert.False(t, ds.Geographic)
}

func TestRead_NoPrjFallsBackToBoundingBox(t *testing.T) {
	dir := t.TempDir()
	shapefiletest.Write(t, dir, "osm-communes-com",
		[]string{"insee", "nom"},
		[]shapefiletest.Feature{
			{Rings: [][][2]float64{shapefiletest.Square(-56.2, 46.8, 0.1)}, Values: []string{"97501", "Miquelon-Langlade"}},
		},
		"",
	)

	ds, err := Read(Source{Dir: dir, Name: "osm-communes-com"})
	require.NoError(t, err)
	assert.True(t, ds.Geographic)
	assert.Equal(t, "97501", ds.Records[0].Attr("insee"))
}

func TestRead_HolesAttachToPrecedingShell(t *testing.T) {
	dir := t.TempDir()
	shapefiletest.Write(t, dir, "ARRONDISSEMENT_MUNICIPAL",
		[]string{"INSEE_ARM"},
		[]shapefiletest.Feature{{
			Rings: [][][2]float64{
				shapefiletest.Square(0, 0, 10),
				shapefiletest.Hole(2, 2, 2),
				shapefiletest.Square(20, 0, 5),
			},
			Values: []string{"69381"},
		}},
		shapefiletest.Lambert93,
	)

	ds, err := Read(Source{Dir: dir, Name: "ARRONDISSEMENT_MUNICIPAL"})
	require.NoError(t, err)

	g := ds.Records[0].Geometry
	require.Equal(t, 2, g.NumPolygons())
	assert.Equal(t, 2, g.Polygon(0).NumLinearRings())
	assert.Equal(t, 1, g.Polygon(1).NumLinearRings())
	assert.InDelta(t, 100-4+25, g.Area(), 1e-9)
}

func TestRead_MissingMandatoryFile(t *testing.T) {
	dir := t.TempDir()
	shapefiletest.Write(t, dir, "COMMUNE", []string{"INSEE_COM"},
		[]shapefiletest.Feature{{Rings: [][][2]float64{shapefiletest.Square(0, 0, 1)}, Values: []string{"01001"}}},
		"",
	)
	require.NoError(t, os.Remove(filepath.Join(dir, "COMMUNE.dbf")))

	_, err := Read(Source{Dir: dir, Name: "COMMUNE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMMUNE.dbf")
}

func TestSource_Files(t *testing.T) {
	src := Source{Dir: "sources", Name: "COMMUNE"}
	assert.Equal(t, []string{
		filepath.Join("sources", "COMMUNE.shp"),
		filepath.Join("sources", "COMMUNE.shx"),
		filepath.Join("sources", "COMMUNE.dbf"),
		filepath.Join("sources", "COMMUNE.prj"),
		filepath.Join("sources", "COMMUNE.cpg"),
	}, src.Files())
}

func TestToMultiPolygon_RejectsNonPolygons(t *testing.T) {
	_, _, err := toMultiPolygon(&shp.Point{X: 1, Y: 2})
	assert.Error(t, err)

	_, _, err = toMultiPolygon(&shp.Null{})
	assert.Error(t, err)

	_, _, err = toMultiPolygon(nil)
	assert.Error(t, err)
}

func TestToMultiPolygon_DropsDegenerateRings(t *testing.T) {
	poly := &shp.PolygonZ{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0},
			{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 5, Y: 5},
		},
	}

	mp, dropped, err := toMultiPolygon(poly)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.Equal(t, 2, mp.Stride())
}

func TestCharsetDecoder(t *testing.T) {
	enc, err := charsetDecoder("UTF-8")
	require.NoError(t, err)
	assert.Nil(t, enc)

	enc, err = charsetDecoder(" 1252\n")
	require.NoError(t, err)
	assert.Equal(t, charmap.Windows1252, enc)

	enc, err = charsetDecoder("ISO-8859-1")
	require.NoError(t, err)
	assert.Equal(t, charmap.ISO8859_1, enc)

	_, err = charsetDecoder("EBCDIC")
	assert.Error(t, err)
}

func TestDecodeAttribute(t *testing.T) {
	latin1 := string([]byte{'S', 0xE8, 'v', 'r', 'e', 's', 0, 0})

	v, err := decodeAttribute(latin1, charmap.ISO8859_1, true)
	require.NoError(t, err)
	assert.Equal(t, "Sèvres", v)

	// Undeclared charset: invalid UTF-8 falls back to Latin-1.
	v, err = decodeAttribute(latin1, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Sèvres", v)

	v, err = decodeAttribute("  Évry  ", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Évry", v)
}
