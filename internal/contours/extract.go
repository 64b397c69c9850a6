package contours

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contours-admin/internal/geometry"
	"github.com/sells-group/contours-admin/internal/shapefile"
)

// Extractor reads a source dataset and simplifies every shape at an
// interval.
type Extractor struct {
	simplifier  geometry.Simplifier
	concurrency int
}

// NewExtractor returns an extractor simplifying with s on up to concurrency
// goroutines.
func NewExtractor(s geometry.Simplifier, concurrency int) *Extractor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Extractor{simplifier: s, concurrency: concurrency}
}

// Extract reads src, decodes the attributes of kind and returns the
// simplified features in source order.
func (e *Extractor) Extract(ctx context.Context, src shapefile.Source, kind Kind, interval int) ([]RawFeature, error) {
	log := zap.L().With(
		zap.String("component", "extract"),
		zap.Stringer("kind", kind),
		zap.Int("interval", interval),
	)
	start := time.Now()

	ds, err := shapefile.Read(src)
	if err != nil {
		return nil, eris.Wrapf(err, "contours: extract %s", kind)
	}
	tolerance := geometry.Tolerance(interval, ds.Geographic)

	out := make([]RawFeature, len(ds.Records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, rec := range ds.Records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			raw, err := decodeRecord(kind, rec)
			if err != nil {
				return err
			}
			simplified, err := e.simplifier.Simplify(rec.Geometry, tolerance)
			if err != nil {
				return eris.Wrapf(err, "contours: simplify %s shape %d", kind, rec.Index)
			}
			out[i] = RawFeature{Geometry: simplified, Record: raw}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "contours: extract %s", kind)
	}

	log.Info("extracted features",
		zap.Int("features", len(out)),
		zap.Bool("geographic", ds.Geographic),
		zap.Float64("tolerance", tolerance),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}
