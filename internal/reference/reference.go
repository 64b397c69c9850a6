// Package reference holds the administrative hierarchy used to enrich
// contours: communes (and municipal arrondissements), departements, regions
// and EPCI, each keyed by INSEE or SIREN code. An Index is built once and is
// read-only afterwards, so it can be shared between goroutines.
package reference

import (
	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a code has no entry in the index.
var ErrNotFound = eris.New("reference: code not found")

// Commune is a commune or municipal arrondissement record.
type Commune struct {
	Code        string `json:"code"`
	Nom         string `json:"nom"`
	Type        string `json:"type,omitempty"`
	Departement string `json:"departement,omitempty"`
	Region      string `json:"region,omitempty"`
	// Commune is the owning commune of a municipal arrondissement.
	Commune string `json:"commune,omitempty"`
}

// Departement is a departement record.
type Departement struct {
	Code   string `json:"code"`
	Nom    string `json:"nom"`
	Region string `json:"region"`
}

// Region is a region record.
type Region struct {
	Code string `json:"code"`
	Nom  string `json:"nom"`
}

// EPCI is an inter-communal grouping and its member communes.
type EPCI struct {
	Code    string   `json:"code"`
	Nom     string   `json:"nom"`
	Membres []Membre `json:"membres,omitempty"`
}

// Membre is a member commune of an EPCI.
type Membre struct {
	Code string `json:"code"`
	Nom  string `json:"nom,omitempty"`
}

// Index exposes code lookups over the administrative hierarchy.
type Index struct {
	communes      map[string]Commune
	departements  map[string]Departement
	regions       map[string]Region
	epci          map[string]EPCI
	communeToEPCI map[string]string
}

// NewIndex builds an index from record slices. Later duplicates replace
// earlier ones. The commune -> EPCI mapping is derived from EPCI members.
func NewIndex(communes []Commune, departements []Departement, regions []Region, epci []EPCI) *Index {
	idx := &Index{
		communes:      make(map[string]Commune, len(communes)),
		departements:  make(map[string]Departement, len(departements)),
		regions:       make(map[string]Region, len(regions)),
		epci:          make(map[string]EPCI, len(epci)),
		communeToEPCI: make(map[string]string),
	}
	for _, c := range communes {
		idx.communes[c.Code] = c
	}
	for _, d := range departements {
		idx.departements[d.Code] = d
	}
	for _, r := range regions {
		idx.regions[r.Code] = r
	}
	for _, e := range epci {
		idx.epci[e.Code] = e
		for _, m := range e.Membres {
			idx.communeToEPCI[m.Code] = e.Code
		}
	}
	return idx
}

// Commune returns the commune or municipal arrondissement with the given code.
func (idx *Index) Commune(code string) (Commune, error) {
	c, ok := idx.communes[code]
	if !ok {
		return Commune{}, eris.Wrapf(ErrNotFound, "commune %q", code)
	}
	return c, nil
}

// Departement returns the departement with the given code.
func (idx *Index) Departement(code string) (Departement, error) {
	d, ok := idx.departements[code]
	if !ok {
		return Departement{}, eris.Wrapf(ErrNotFound, "departement %q", code)
	}
	return d, nil
}

// Region returns the region with the given code.
func (idx *Index) Region(code string) (Region, error) {
	r, ok := idx.regions[code]
	if !ok {
		return Region{}, eris.Wrapf(ErrNotFound, "region %q", code)
	}
	return r, nil
}

// EPCI returns the EPCI with the given SIREN code.
func (idx *Index) EPCI(code string) (EPCI, error) {
	e, ok := idx.epci[code]
	if !ok {
		return EPCI{}, eris.Wrapf(ErrNotFound, "epci %q", code)
	}
	return e, nil
}

// EPCIOfCommune returns the EPCI a commune belongs to. Communes outside any
// EPCI are not an error.
func (idx *Index) EPCIOfCommune(communeCode string) (EPCI, bool) {
	code, ok := idx.communeToEPCI[communeCode]
	if !ok {
		return EPCI{}, false
	}
	e, ok := idx.epci[code]
	return e, ok
}

// Stats reports the number of records per mapping.
type Stats struct {
	Communes     int
	Departements int
	Regions      int
	EPCI         int
}

// Stats returns record counts, for logging.
func (idx *Index) Stats() Stats {
	return Stats{
		Communes:     len(idx.communes),
		Departements: len(idx.departements),
		Regions:      len(idx.regions),
		EPCI:         len(idx.epci),
	}
}
