package shapefile

import (
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// charsetDecoder returns the decoder declared by a .cpg file. A nil encoding
// means UTF-8.
func charsetDecoder(cpg string) (encoding.Encoding, error) {
	name := strings.ToUpper(strings.TrimSpace(cpg))
	name = strings.NewReplacer("-", "", "_", "", " ", "").Replace(name)

	switch name {
	case "", "UTF8":
		return nil, nil
	case "1252", "CP1252", "WINDOWS1252", "ANSI1252":
		return charmap.Windows1252, nil
	case "88591", "ISO88591", "LATIN1":
		return charmap.ISO8859_1, nil
	case "885915", "ISO885915", "LATIN9":
		return charmap.ISO8859_15, nil
	case "850", "CP850", "IBM850":
		return charmap.CodePage850, nil
	}
	return nil, eris.Errorf("shapefile: unsupported code page %q", cpg)
}

// decodeAttribute converts a raw DBF value. Without a declared charset,
// values that are not valid UTF-8 are read as Latin-1, the DBF default.
func decodeAttribute(raw string, enc encoding.Encoding, declared bool) (string, error) {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if enc == nil {
		if declared || utf8.ValidString(raw) {
			return raw, nil
		}
		enc = charmap.ISO8859_1
	}
	out, err := enc.NewDecoder().String(raw)
	if err != nil {
		return "", eris.Wrap(err, "shapefile: decode attribute")
	}
	return out, nil
}
