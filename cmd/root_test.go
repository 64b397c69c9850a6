package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contours-admin/internal/config"
	"github.com/sells-group/contours-admin/internal/reference"
	"github.com/sells-group/contours-admin/internal/shapefile/shapefiletest"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"build", "fetch", "serve"} {
		assert.True(t, names[name], "expected subcommand %q", name)
	}
	assert.Equal(t, "contours", rootCmd.Use)
}

func TestBuildCommand_Flags(t *testing.T) {
	for _, name := range []string{"intervals", "layers", "simplifier", "metrics-file"} {
		assert.NotNil(t, buildCmd.Flags().Lookup(name), "build should have --%s", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}

func TestApplyBuildFlags(t *testing.T) {
	c := &config.Config{Build: config.BuildConfig{
		Intervals:  []int{1000, 100, 50, 5},
		Layers:     config.KnownLayers,
		Simplifier: "topology",
	}}
	require.NoError(t, buildCmd.Flags().Set("intervals", "100,5"))
	require.NoError(t, buildCmd.Flags().Set("layers", "regions"))
	t.Cleanup(func() {
		buildCmd.Flags().Lookup("intervals").Changed = false
		buildCmd.Flags().Lookup("layers").Changed = false
		buildIntervals, buildLayers = nil, nil
	})

	applyBuildFlags(buildCmd, c)
	assert.Equal(t, []int{100, 5}, c.Build.Intervals)
	assert.Equal(t, []string{"regions"}, c.Build.Layers)
	assert.Equal(t, "topology", c.Build.Simplifier)
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestRunBuild(t *testing.T) {
	root := t.TempDir()
	sources := filepath.Join(root, "sources")
	refDir := filepath.Join(root, "reference")
	dist := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(sources, 0o755))
	require.NoError(t, os.MkdirAll(refDir, 0o755))

	shapefiletest.Write(t, sources, "COMMUNE",
		[]string{"INSEE_COM", "NOM", "INSEE_DEP", "INSEE_REG"},
		[]shapefiletest.Feature{
			{Rings: [][][2]float64{shapefiletest.Square(650000, 6860000, 10000)}, Values: []string{"75056", "PARIS", "75", "11"}},
			{Rings: [][][2]float64{shapefiletest.Square(840000, 6520000, 10000)}, Values: []string{"69123", "LYON", "69", "84"}},
		},
		shapefiletest.Lambert93,
	)
	writeJSON(t, filepath.Join(refDir, reference.CommunesFile), []reference.Commune{
		{Code: "75056", Nom: "Paris", Type: reference.TypeCommuneActuelle, Departement: "75", Region: "11"},
		{Code: "69123", Nom: "Lyon", Type: reference.TypeCommuneActuelle, Departement: "69", Region: "84"},
	})
	writeJSON(t, filepath.Join(refDir, reference.DepartementsFile), []reference.Departement{
		{Code: "75", Nom: "Paris", Region: "11"},
		{Code: "69", Nom: "Rhône", Region: "84"},
	})
	writeJSON(t, filepath.Join(refDir, reference.RegionsFile), []reference.Region{
		{Code: "11", Nom: "Île-de-France"},
		{Code: "84", Nom: "Auvergne-Rhône-Alpes"},
	})
	writeJSON(t, filepath.Join(refDir, reference.EPCIFile), []reference.EPCI{})

	c := &config.Config{
		Sources:   config.SourcesConfig{Dir: sources, Communes: "COMMUNE"},
		Reference: config.ReferenceConfig{Dir: refDir},
		Build: config.BuildConfig{
			Intervals:   []int{1000},
			Layers:      []string{"regions", "communes"},
			DistDir:     dist,
			Simplifier:  "visvalingam",
			Concurrency: 2,
			MetricsFile: filepath.Join(root, "contours.prom"),
		},
		Store: config.StoreConfig{Driver: "sqlite", Dir: dist, WriteConcurrency: 2},
	}
	require.NoError(t, c.Validate())

	manifest, err := runBuild(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, manifest.Layers, 2)
	assert.Equal(t, "communes-1000m.geojson", manifest.Layers[0].File)
	assert.Equal(t, "regions-1000m.geojson", manifest.Layers[1].File)
	assert.Equal(t, 2, manifest.Layers[1].Features)

	for _, f := range []string{"communes-1000m.geojson", "regions-1000m.geojson", "communes-1000m.sqlite", "manifest.json"} {
		_, err := os.Stat(filepath.Join(dist, f))
		assert.NoError(t, err, f)
	}

	prom, err := os.ReadFile(c.Build.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `contours_features_written_total{interval="1000",layer="regions"} 2`)
}

func TestRunBuild_MissingReference(t *testing.T) {
	c := &config.Config{Reference: config.ReferenceConfig{Dir: t.TempDir()}}
	_, err := runBuild(context.Background(), c)
	assert.Error(t, err)
}
