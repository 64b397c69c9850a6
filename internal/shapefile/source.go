// Package shapefile reads polygon shapefile datasets into go-geom
// multipolygons with decoded attribute tables.
package shapefile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Extensions of the co-named files making up a dataset. The first three are
// mandatory.
var Extensions = []string{".shp", ".shx", ".dbf", ".prj", ".cpg"}

// Source identifies a dataset by directory and base name.
type Source struct {
	Dir  string
	Name string
}

// Path returns the path of the dataset file with the given extension.
func (s Source) Path(ext string) string {
	return filepath.Join(s.Dir, s.Name+ext)
}

// Files returns the paths of all co-named files, mandatory or not.
func (s Source) Files() []string {
	files := make([]string, 0, len(Extensions))
	for _, ext := range Extensions {
		files = append(files, s.Path(ext))
	}
	return files
}

func (s Source) String() string {
	return s.Path("")
}

// Check verifies the mandatory files exist.
func (s Source) Check() error {
	for _, ext := range Extensions[:3] {
		p := s.Path(ext)
		if _, err := os.Stat(p); err != nil {
			return eris.Wrapf(err, "shapefile: stat %s", p)
		}
	}
	return nil
}

// readOptional returns the content of an optional sidecar file, or nil when
// it does not exist.
func (s Source) readOptional(ext string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(ext))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", s.Path(ext))
	}
	return data, nil
}
