package reference

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// File names of the decoupage-administratif dataset.
const (
	CommunesFile     = "communes.json"
	DepartementsFile = "departements.json"
	RegionsFile      = "regions.json"
	EPCIFile         = "epci.json"
)

// Files lists every file Load reads.
var Files = []string{CommunesFile, DepartementsFile, RegionsFile, EPCIFile}

// Commune types kept in the commune index. Records with another type
// (communes deleguees, associees) reuse codes of current communes and would
// shadow them.
const (
	TypeCommuneActuelle         = "commune-actuelle"
	TypeArrondissementMunicipal = "arrondissement-municipal"
)

// Load reads the four reference files from dir and builds an Index.
func Load(dir string) (*Index, error) {
	var communes []Commune
	if err := readJSON(filepath.Join(dir, CommunesFile), &communes); err != nil {
		return nil, err
	}
	var departements []Departement
	if err := readJSON(filepath.Join(dir, DepartementsFile), &departements); err != nil {
		return nil, err
	}
	var regions []Region
	if err := readJSON(filepath.Join(dir, RegionsFile), &regions); err != nil {
		return nil, err
	}
	var epci []EPCI
	if err := readJSON(filepath.Join(dir, EPCIFile), &epci); err != nil {
		return nil, err
	}

	kept := communes[:0]
	for _, c := range communes {
		switch c.Type {
		case "", TypeCommuneActuelle, TypeArrondissementMunicipal:
			kept = append(kept, c)
		}
	}

	idx := NewIndex(kept, departements, regions, epci)
	s := idx.Stats()
	zap.L().Info("reference index loaded",
		zap.String("dir", dir),
		zap.Int("communes", s.Communes),
		zap.Int("departements", s.Departements),
		zap.Int("regions", s.Regions),
		zap.Int("epci", s.EPCI),
	)
	return idx, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "reference: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "reference: decode %s", path)
	}
	return nil
}
