package contours

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/contours-admin/internal/shapefile"
)

// Kind identifies a source dataset.
type Kind int

// Source dataset kinds.
const (
	KindCommune Kind = iota
	KindArrondissement
	KindCommuneCOM
)

func (k Kind) String() string {
	switch k {
	case KindCommune:
		return "communes"
	case KindArrondissement:
		return "arrondissements"
	case KindCommuneCOM:
		return "communes-com"
	}
	return "unknown"
}

// RawRecord is the source attribute set of one extracted shape. It is one of
// CommuneRecord, ArrondissementRecord or CommuneCOMRecord.
type RawRecord interface {
	rawRecord()
}

// CommuneRecord holds the attributes of a COMMUNE shape.
type CommuneRecord struct {
	Code        string
	Nom         string
	Departement string
	Region      string
}

// ArrondissementRecord holds the attributes of an ARRONDISSEMENT_MUNICIPAL
// shape. Commune is the owning commune code.
type ArrondissementRecord struct {
	Code    string
	Nom     string
	Commune string
}

// CommuneCOMRecord holds the attributes of an overseas commune shape. The
// overseas dataset also carries other administrative levels, told apart by
// code length.
type CommuneCOMRecord struct {
	Code string
	Nom  string
}

func (CommuneRecord) rawRecord()        {}
func (ArrondissementRecord) rawRecord() {}
func (CommuneCOMRecord) rawRecord()     {}

// RawFeature is a simplified shape with its source attributes.
type RawFeature struct {
	Geometry *geom.MultiPolygon
	Record   RawRecord
}

// decodeRecord reads the attributes of kind from a shapefile record.
func decodeRecord(kind Kind, r shapefile.Record) (RawRecord, error) {
	switch kind {
	case KindCommune:
		rec := CommuneRecord{
			Code:        r.Attr("INSEE_COM"),
			Nom:         r.Attr("NOM", "NOM_COM"),
			Departement: r.Attr("INSEE_DEP"),
			Region:      r.Attr("INSEE_REG"),
		}
		if rec.Code == "" {
			return nil, eris.Errorf("contours: commune shape %d has no INSEE_COM", r.Index)
		}
		return rec, nil
	case KindArrondissement:
		rec := ArrondissementRecord{
			Code:    r.Attr("INSEE_ARM"),
			Nom:     r.Attr("NOM", "NOM_ARM"),
			Commune: r.Attr("INSEE_COM"),
		}
		if rec.Code == "" || rec.Commune == "" {
			return nil, eris.Errorf("contours: arrondissement shape %d has no INSEE_ARM or INSEE_COM", r.Index)
		}
		return rec, nil
	case KindCommuneCOM:
		return CommuneCOMRecord{
			Code: r.Attr("insee"),
			Nom:  r.Attr("nom"),
		}, nil
	}
	return nil, eris.Errorf("contours: unknown source kind %d", int(kind))
}
