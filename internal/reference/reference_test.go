package reference

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIndex() *Index {
	return NewIndex(
		[]Commune{
			{Code: "75056", Nom: "Paris", Type: TypeCommuneActuelle, Departement: "75", Region: "11"},
			{Code: "75101", Nom: "Paris 1er Arrondissement", Type: TypeArrondissementMunicipal, Commune: "75056"},
			{Code: "92012", Nom: "Boulogne-Billancourt", Type: TypeCommuneActuelle, Departement: "92", Region: "11"},
		},
		[]Departement{
			{Code: "75", Nom: "Paris", Region: "11"},
			{Code: "92", Nom: "Hauts-de-Seine", Region: "11"},
		},
		[]Region{{Code: "11", Nom: "Île-de-France"}},
		[]EPCI{{
			Code:    "200054781",
			Nom:     "Métropole du Grand Paris",
			Membres: []Membre{{Code: "75056"}, {Code: "92012"}},
		}},
	)
}

func TestIndex_Lookups(t *testing.T) {
	idx := testIndex()

	c, err := idx.Commune("75056")
	require.NoError(t, err)
	assert.Equal(t, "Paris", c.Nom)
	assert.Equal(t, "75", c.Departement)

	arr, err := idx.Commune("75101")
	require.NoError(t, err)
	assert.Equal(t, "75056", arr.Commune)

	d, err := idx.Departement("92")
	require.NoError(t, err)
	assert.Equal(t, "Hauts-de-Seine", d.Nom)
	assert.Equal(t, "11", d.Region)

	r, err := idx.Region("11")
	require.NoError(t, err)
	assert.Equal(t, "Île-de-France", r.Nom)

	e, err := idx.EPCI("200054781")
	require.NoError(t, err)
	assert.Equal(t, "Métropole du Grand Paris", e.Nom)
}

func TestIndex_NotFound(t *testing.T) {
	idx := testIndex()

	_, err := idx.Commune("99999")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `commune "99999"`)

	_, err = idx.Departement("2A")
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = idx.Region("94")
	assert.True(t, eris.Is(err, ErrNotFound))

	_, err = idx.EPCI("000000000")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestIndex_EPCIOfCommune(t *testing.T) {
	idx := testIndex()

	e, ok := idx.EPCIOfCommune("92012")
	require.True(t, ok)
	assert.Equal(t, "200054781", e.Code)

	_, ok = idx.EPCIOfCommune("75101")
	assert.False(t, ok)
}

func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, CommunesFile, []Commune{
		{Code: "75056", Nom: "Paris", Type: TypeCommuneActuelle, Departement: "75", Region: "11"},
		{Code: "75056", Nom: "Paris (déléguée)", Type: "commune-deleguee"},
		{Code: "75101", Nom: "Paris 1er Arrondissement", Type: TypeArrondissementMunicipal, Commune: "75056"},
		{Code: "97501", Nom: "Miquelon-Langlade"},
	})
	writeJSON(t, dir, DepartementsFile, []Departement{{Code: "75", Nom: "Paris", Region: "11"}})
	writeJSON(t, dir, RegionsFile, []Region{{Code: "11", Nom: "Île-de-France"}})
	writeJSON(t, dir, EPCIFile, []EPCI{{Code: "200054781", Nom: "Métropole du Grand Paris", Membres: []Membre{{Code: "75056"}}}})

	idx, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, Stats{Communes: 3, Departements: 1, Regions: 1, EPCI: 1}, idx.Stats())

	// The delegated commune must not shadow the current one.
	c, err := idx.Commune("75056")
	require.NoError(t, err)
	assert.Equal(t, "Paris", c.Nom)

	_, err = idx.Commune("97501")
	assert.NoError(t, err)

	e, ok := idx.EPCIOfCommune("75056")
	require.True(t, ok)
	assert.Equal(t, "200054781", e.Code)
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, dir, CommunesFile, []Commune{})

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), DepartementsFile)
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CommunesFile), []byte("{not json"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}
