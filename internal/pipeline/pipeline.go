// Package pipeline drives a full contour build: for each interval it
// extracts and normalizes the source datasets, then builds and writes every
// requested layer.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contours-admin/internal/config"
	"github.com/sells-group/contours-admin/internal/contours"
	"github.com/sells-group/contours-admin/internal/geometry"
	"github.com/sells-group/contours-admin/internal/kvstore"
	"github.com/sells-group/contours-admin/internal/metrics"
	"github.com/sells-group/contours-admin/internal/output"
	"github.com/sells-group/contours-admin/internal/reference"
	"github.com/sells-group/contours-admin/internal/shapefile"
)

// Pipeline builds the configured layers at the configured intervals.
type Pipeline struct {
	intervals   []int
	layers      []contours.Layer
	sources     map[contours.Kind]shapefile.Source
	distDir     string
	concurrency int

	extractor  *contours.Extractor
	normalizer *contours.Normalizer
	builder    *contours.Builder
	writer     *output.Writer
	metrics    *metrics.Build
}

// New wires a pipeline from cfg. ref is shared read-only by every stage.
func New(cfg *config.Config, ref *reference.Index, opener kvstore.Opener, m *metrics.Build) (*Pipeline, error) {
	simplifier, err := geometry.NewSimplifier(cfg.Build.Simplifier)
	if err != nil {
		return nil, err
	}

	layers := make([]contours.Layer, 0, len(cfg.Build.Layers))
	for _, name := range cfg.Build.Layers {
		l, err := contours.ParseLayer(name)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: layers")
		}
		layers = append(layers, l)
	}
	if len(layers) == 0 {
		layers = contours.AllLayers
	}

	concurrency := max(cfg.Build.Concurrency, 1)
	return &Pipeline{
		intervals: cfg.Build.Intervals,
		layers:    layers,
		sources: map[contours.Kind]shapefile.Source{
			contours.KindCommune:        {Dir: cfg.Sources.Dir, Name: cfg.Sources.Communes},
			contours.KindArrondissement: {Dir: cfg.Sources.Dir, Name: cfg.Sources.Arrondissements},
			contours.KindCommuneCOM:     {Dir: cfg.Sources.Dir, Name: cfg.Sources.CommunesCOM},
		},
		distDir:     cfg.Build.DistDir,
		concurrency: concurrency,
		extractor:   contours.NewExtractor(simplifier, concurrency),
		normalizer:  contours.NewNormalizer(ref),
		builder:     contours.NewBuilder(ref, contours.NewAggregator(geometry.Union, concurrency)),
		writer:      output.NewWriter(cfg.Build.DistDir, opener, cfg.Store.WriteConcurrency),
		metrics:     m,
	}, nil
}

// Run builds every interval in turn and writes the manifest. The first
// failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*output.Manifest, error) {
	manifest := output.NewManifest(p.intervals)
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", manifest.RunID))
	log.Info("build started",
		zap.Ints("intervals", p.intervals),
		zap.Int("layers", len(p.layers)),
	)

	for _, interval := range p.intervals {
		if err := p.runInterval(ctx, interval, manifest); err != nil {
			return nil, eris.Wrapf(err, "pipeline: interval %dm", interval)
		}
	}

	if err := manifest.Write(p.distDir); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.MarkSuccess(manifest.FinishedAt)
	}
	log.Info("build finished",
		zap.Int("files", len(manifest.Layers)),
		zap.Duration("elapsed", manifest.FinishedAt.Sub(manifest.StartedAt)),
	)
	return manifest, nil
}

func (p *Pipeline) runInterval(ctx context.Context, interval int, manifest *output.Manifest) error {
	start := time.Now()
	in, err := p.extract(ctx, interval)
	if err != nil {
		return err
	}
	p.observe("extract", interval, start)

	start = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, layer := range p.layers {
		g.Go(func() error {
			features, err := p.builder.Build(gctx, layer, in)
			if err != nil {
				return err
			}
			report, err := p.writer.WriteLayer(gctx, layer, interval, features)
			if err != nil {
				return err
			}
			manifest.Add(report)
			if p.metrics != nil {
				p.metrics.AddFeatures(string(layer), interval, report.Features)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	p.observe("layers", interval, start)
	return nil
}

// extract reads and normalizes the datasets the requested layers need,
// concurrently.
func (p *Pipeline) extract(ctx context.Context, interval int) (contours.Inputs, error) {
	var in contours.Inputs
	targets := map[contours.Kind]*[]contours.Feature{
		contours.KindCommune:        &in.Communes,
		contours.KindArrondissement: &in.Arrondissements,
		contours.KindCommuneCOM:     &in.CommunesCOM,
	}

	g, gctx := errgroup.WithContext(ctx)
	for kind := range p.neededKinds() {
		dst := targets[kind]
		g.Go(func() error {
			raw, err := p.extractor.Extract(gctx, p.sources[kind], kind, interval)
			if err != nil {
				return err
			}
			features, err := p.normalizer.Normalize(raw)
			if err != nil {
				return eris.Wrapf(err, "pipeline: normalize %s", kind)
			}
			*dst = features
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return contours.Inputs{}, err
	}
	return in, nil
}

// neededKinds returns the source datasets read by the requested layers.
func (p *Pipeline) neededKinds() map[contours.Kind]bool {
	kinds := make(map[contours.Kind]bool)
	for _, l := range p.layers {
		switch l {
		case contours.LayerArrondissements:
			kinds[contours.KindArrondissement] = true
		case contours.LayerCommunesCOM:
			kinds[contours.KindCommuneCOM] = true
		default:
			kinds[contours.KindCommune] = true
		}
	}
	return kinds
}

func (p *Pipeline) observe(stage string, interval int, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, interval, time.Since(start))
	}
}
