package contours

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contours-admin/internal/reference"
)

// Inputs are the normalized features of one interval. Builders only read
// them.
type Inputs struct {
	Communes        []Feature
	Arrondissements []Feature
	CommunesCOM     []Feature
}

// Builder produces the published layers from normalized features.
type Builder struct {
	ref *reference.Index
	agg *Aggregator
}

// NewBuilder returns a builder enriching from ref and dissolving with agg.
func NewBuilder(ref *reference.Index, agg *Aggregator) *Builder {
	return &Builder{ref: ref, agg: agg}
}

// Build returns the features of layer sorted by code.
func (b *Builder) Build(ctx context.Context, layer Layer, in Inputs) ([]Feature, error) {
	var (
		out []Feature
		err error
	)
	switch layer {
	case LayerEPCI:
		out, err = b.agg.Aggregate(ctx, in.Communes, AttrEPCI, b.resolveEPCI)
	case LayerDepartements:
		out, err = b.agg.Aggregate(ctx, in.Communes, AttrDepartement, b.resolveDepartement)
	case LayerRegions:
		out, err = b.agg.Aggregate(ctx, in.Communes, AttrRegion, b.resolveRegion)
	case LayerCommunes:
		out, err = b.communes(in.Communes)
	case LayerArrondissements:
		out, err = b.arrondissements(in.Arrondissements)
	case LayerCommunesCOM:
		out, err = b.communesCOM(in.CommunesCOM)
	default:
		return nil, eris.Errorf("contours: unknown layer %q", layer)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "contours: build %s", layer)
	}
	SortByCode(out)
	return out, nil
}

// SortByCode orders features by code in place.
func SortByCode(features []Feature) {
	slices.SortStableFunc(features, func(x, y Feature) int {
		return strings.Compare(x.Properties.Code, y.Properties.Code)
	})
}

func (b *Builder) resolveEPCI(code string) (Properties, error) {
	e, err := b.ref.EPCI(code)
	if err != nil {
		return Properties{}, err
	}
	return Properties{Code: e.Code, Nom: e.Nom}, nil
}

func (b *Builder) resolveDepartement(code string) (Properties, error) {
	d, err := b.ref.Departement(code)
	if err != nil {
		return Properties{}, err
	}
	return Properties{Code: d.Code, Nom: d.Nom, Region: d.Region}, nil
}

func (b *Builder) resolveRegion(code string) (Properties, error) {
	r, err := b.ref.Region(code)
	if err != nil {
		return Properties{}, err
	}
	return Properties{Code: r.Code, Nom: r.Nom}, nil
}

// enrich maps features one-to-one through fn. Geometries are shared with
// the input.
func enrich(features []Feature, fn func(Properties) (Properties, error)) ([]Feature, error) {
	out := make([]Feature, len(features))
	for i, f := range features {
		p, err := fn(f.Properties)
		if err != nil {
			return nil, err
		}
		out[i] = Feature{Geometry: f.Geometry, Properties: p}
	}
	return out, nil
}

func (b *Builder) communes(features []Feature) ([]Feature, error) {
	return enrich(features, func(p Properties) (Properties, error) {
		c, err := b.ref.Commune(p.Code)
		if err != nil {
			return Properties{}, err
		}
		return Properties{
			Code:        c.Code,
			Nom:         c.Nom,
			Departement: c.Departement,
			Region:      c.Region,
			EPCI:        p.EPCI,
		}, nil
	})
}

func (b *Builder) arrondissements(features []Feature) ([]Feature, error) {
	return enrich(features, func(p Properties) (Properties, error) {
		a, err := b.ref.Commune(p.Code)
		if err != nil {
			return Properties{}, err
		}
		return Properties{
			Code:        a.Code,
			Nom:         a.Nom,
			Commune:     p.Commune,
			Departement: p.Departement,
			Region:      p.Region,
		}, nil
	})
}

func (b *Builder) communesCOM(features []Feature) ([]Feature, error) {
	return enrich(features, func(p Properties) (Properties, error) {
		c, err := b.ref.Commune(p.Code)
		if err != nil {
			return Properties{}, err
		}
		return Properties{
			Code:         c.Code,
			Nom:          c.Nom,
			Collectivite: p.Collectivite,
		}, nil
	})
}
