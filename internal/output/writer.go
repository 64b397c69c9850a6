// Package output persists built layers: one GeoJSON FeatureCollection file
// and one key-value namespace per layer and interval.
package output

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contours-admin/internal/contours"
	"github.com/sells-group/contours-admin/internal/geometry"
	"github.com/sells-group/contours-admin/internal/kvstore"
)

// LayerReport describes one written layer.
type LayerReport struct {
	Layer    contours.Layer `json:"layer"`
	Interval int            `json:"interval"`
	File     string         `json:"file"`
	Features int            `json:"features"`
	Checksum string         `json:"xxhash64"`
}

// Writer writes layers under a dist directory and into key-value stores.
type Writer struct {
	distDir          string
	opener           kvstore.Opener
	writeConcurrency int
}

// NewWriter returns a writer. writeConcurrency bounds concurrent store
// writes per layer.
func NewWriter(distDir string, opener kvstore.Opener, writeConcurrency int) *Writer {
	if writeConcurrency < 1 {
		writeConcurrency = 1
	}
	return &Writer{distDir: distDir, opener: opener, writeConcurrency: writeConcurrency}
}

type encodedFeature struct {
	code string
	data json.RawMessage
}

func encodeAll(features []contours.Feature, digits int) ([]encodedFeature, error) {
	out := make([]encodedFeature, len(features))
	for i, f := range features {
		gf := &geojson.Feature{
			Geometry:   geometry.Compact(geometry.Truncate(f.Geometry, digits)),
			Properties: f.Properties.Map(),
		}
		data, err := gf.MarshalJSON()
		if err != nil {
			return nil, eris.Wrapf(err, "output: encode feature %s", f.Properties.Code)
		}
		out[i] = encodedFeature{code: f.Properties.Code, data: data}
	}
	return out, nil
}

// WriteLayer truncates features and then writes the layer file and the layer
// store concurrently. Features are written in the order given.
func (w *Writer) WriteLayer(ctx context.Context, layer contours.Layer, interval int, features []contours.Feature) (LayerReport, error) {
	log := zap.L().With(
		zap.String("component", "output"),
		zap.String("layer", string(layer)),
		zap.Int("interval", interval),
	)

	encoded, err := encodeAll(features, geometry.Precision(interval))
	if err != nil {
		return LayerReport{}, err
	}

	report := LayerReport{
		Layer:    layer,
		Interval: interval,
		File:     contours.FileName(layer, interval),
		Features: len(encoded),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := w.writeFile(filepath.Join(w.distDir, report.File), encoded)
		if err != nil {
			return err
		}
		report.Checksum = sum
		return nil
	})
	g.Go(func() error {
		return w.writeStore(gctx, contours.Namespace(layer, interval), encoded)
	})
	if err := g.Wait(); err != nil {
		return LayerReport{}, eris.Wrapf(err, "output: write %s", contours.Namespace(layer, interval))
	}

	log.Info("layer written",
		zap.Int("features", report.Features),
		zap.String("file", report.File),
	)
	return report, nil
}

// writeFile streams a FeatureCollection to path and returns its xxhash64.
func (w *Writer) writeFile(path string, features []encodedFeature) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", eris.Wrapf(err, "output: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "output: create %s", path)
	}
	defer f.Close()

	digest := xxhash.New()
	bw := bufio.NewWriterSize(io.MultiWriter(f, digest), 1<<20)

	if _, err := bw.WriteString(`{"type":"FeatureCollection","features":[`); err != nil {
		return "", eris.Wrapf(err, "output: write %s", path)
	}
	for i, ef := range features {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return "", eris.Wrapf(err, "output: write %s", path)
			}
		}
		if _, err := bw.Write(ef.data); err != nil {
			return "", eris.Wrapf(err, "output: write %s", path)
		}
	}
	if _, err := bw.WriteString("]}\n"); err != nil {
		return "", eris.Wrapf(err, "output: write %s", path)
	}
	if err := bw.Flush(); err != nil {
		return "", eris.Wrapf(err, "output: flush %s", path)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrapf(err, "output: close %s", path)
	}
	return fmt.Sprintf("%016x", digest.Sum64()), nil
}

// writeStore replaces the content of namespace with features. A duplicate
// code keeps whichever write lands last.
func (w *Writer) writeStore(ctx context.Context, namespace string, features []encodedFeature) (err error) {
	store, err := w.opener.Open(ctx, namespace)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "output: close store %s", namespace)
		}
	}()

	if err := store.Clear(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.writeConcurrency)
	for _, ef := range features {
		g.Go(func() error {
			return store.Set(gctx, ef.code, ef.data)
		})
	}
	return g.Wait()
}
