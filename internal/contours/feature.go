// Package contours turns raw administrative shapefile records into the
// published boundary layers: it normalizes attributes against the reference
// index, dissolves communes into EPCI, departements and regions, and
// re-enriches the one-to-one layers.
package contours

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// Properties is the canonical attribute set of a published feature. Empty
// fields are absent from the output.
type Properties struct {
	Code         string `json:"code"`
	Nom          string `json:"nom"`
	Commune      string `json:"commune,omitempty"`
	Departement  string `json:"departement,omitempty"`
	Region       string `json:"region,omitempty"`
	EPCI         string `json:"epci,omitempty"`
	Collectivite string `json:"collectivite,omitempty"`
}

// Map returns the present attributes as a GeoJSON properties object.
func (p Properties) Map() map[string]interface{} {
	m := map[string]interface{}{"code": p.Code, "nom": p.Nom}
	for _, a := range []Attribute{AttrCommune, AttrDepartement, AttrRegion, AttrEPCI, AttrCollectivite} {
		if v, ok := p.Value(a); ok {
			m[string(a)] = v
		}
	}
	return m
}

// Attribute names a grouping attribute.
type Attribute string

// Attributes features can be grouped by.
const (
	AttrCommune      Attribute = "commune"
	AttrDepartement  Attribute = "departement"
	AttrRegion       Attribute = "region"
	AttrEPCI         Attribute = "epci"
	AttrCollectivite Attribute = "collectivite"
)

// Value returns the attribute value and whether it is present.
func (p Properties) Value(a Attribute) (string, bool) {
	var v string
	switch a {
	case AttrCommune:
		v = p.Commune
	case AttrDepartement:
		v = p.Departement
	case AttrRegion:
		v = p.Region
	case AttrEPCI:
		v = p.EPCI
	case AttrCollectivite:
		v = p.Collectivite
	}
	return v, v != ""
}

// Feature is a boundary with its canonical attributes. Geometries are shared
// between stages and must never be modified in place.
type Feature struct {
	Geometry   *geom.MultiPolygon
	Properties Properties
}

// Layer names a published layer.
type Layer string

// Published layers.
const (
	LayerEPCI            Layer = "epci"
	LayerDepartements    Layer = "departements"
	LayerRegions         Layer = "regions"
	LayerCommunes        Layer = "communes"
	LayerArrondissements Layer = "arrondissements-municipaux"
	LayerCommunesCOM     Layer = "communes-com"
)

// AllLayers lists every layer in build order.
var AllLayers = []Layer{
	LayerEPCI,
	LayerDepartements,
	LayerRegions,
	LayerCommunes,
	LayerArrondissements,
	LayerCommunesCOM,
}

// ParseLayer validates a layer name.
func ParseLayer(s string) (Layer, error) {
	for _, l := range AllLayers {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("contours: unknown layer %q", s)
}

// Namespace identifies a layer at an interval, e.g. "communes-1000m".
func Namespace(layer Layer, interval int) string {
	return fmt.Sprintf("%s-%dm", layer, interval)
}

// FileName is the GeoJSON file name of a layer at an interval.
func FileName(layer Layer, interval int) string {
	return Namespace(layer, interval) + ".geojson"
}
