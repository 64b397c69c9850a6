package contours

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/contours-admin/internal/reference"
)

// communeCOMCodeLength is the length of an overseas commune code. Shorter
// and longer codes in the overseas dataset are other administrative levels.
const communeCOMCodeLength = 5

// Normalizer replaces source attributes with the canonical attribute set.
type Normalizer struct {
	ref *reference.Index
}

// NewNormalizer returns a normalizer resolving parents from ref.
func NewNormalizer(ref *reference.Index) *Normalizer {
	return &Normalizer{ref: ref}
}

// Normalize converts raw features in order. Overseas records that are not
// communes are skipped; a reference miss aborts.
func (n *Normalizer) Normalize(raw []RawFeature) ([]Feature, error) {
	out := make([]Feature, 0, len(raw))
	for _, rf := range raw {
		props, ok, err := n.properties(rf.Record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, Feature{Geometry: rf.Geometry, Properties: props})
	}
	return out, nil
}

func (n *Normalizer) properties(rec RawRecord) (Properties, bool, error) {
	switch r := rec.(type) {
	case CommuneRecord:
		p := Properties{
			Code:        r.Code,
			Nom:         r.Nom,
			Departement: r.Departement,
			Region:      r.Region,
		}
		if epci, ok := n.ref.EPCIOfCommune(r.Code); ok {
			p.EPCI = epci.Code
		}
		return p, true, nil

	case ArrondissementRecord:
		commune, err := n.ref.Commune(r.Commune)
		if err != nil {
			return Properties{}, false, eris.Wrapf(err, "contours: arrondissement %s", r.Code)
		}
		return Properties{
			Code:        r.Code,
			Nom:         r.Nom,
			Commune:     r.Commune,
			Departement: commune.Departement,
			Region:      commune.Region,
		}, true, nil

	case CommuneCOMRecord:
		if len(r.Code) != communeCOMCodeLength {
			return Properties{}, false, nil
		}
		return Properties{
			Code:         r.Code,
			Nom:          r.Nom,
			Collectivite: r.Code[:3],
		}, true, nil
	}
	return Properties{}, false, eris.Errorf("contours: unsupported record %T", rec)
}
