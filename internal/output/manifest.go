package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ManifestFile is the manifest name inside the dist directory.
const ManifestFile = "manifest.json"

// Manifest lists the layers written by one build.
type Manifest struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Intervals  []int         `json:"intervals"`
	Layers     []LayerReport `json:"layers"`

	mu sync.Mutex
}

// NewManifest starts a manifest for a new run.
func NewManifest(intervals []int) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Intervals: intervals,
	}
}

// Add records a written layer. Safe for concurrent use.
func (m *Manifest) Add(r LayerReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Layers = append(m.Layers, r)
}

// Write stamps the end time and writes the manifest to distDir, layers
// ordered by file name.
func (m *Manifest) Write(distDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FinishedAt = time.Now().UTC()
	slices.SortFunc(m.Layers, func(a, b LayerReport) int {
		return strings.Compare(a.File, b.File)
	})

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "output: marshal manifest")
	}
	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return eris.Wrapf(err, "output: create dir %s", distDir)
	}
	path := filepath.Join(distDir, ManifestFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "output: write %s", path)
	}
	return nil
}

// ReadManifest reads the manifest of distDir.
func ReadManifest(distDir string) (*Manifest, error) {
	path := filepath.Join(distDir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "output: read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "output: decode %s", path)
	}
	return &m, nil
}
