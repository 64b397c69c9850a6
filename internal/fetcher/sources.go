package fetcher

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contours-admin/internal/config"
	"github.com/sells-group/contours-admin/internal/shapefile"
)

// Installer downloads the configured archives and reference files and lays
// them out where a build expects them.
type Installer struct {
	fetcher      Fetcher
	archives     []config.ArchiveConfig
	reference    []string
	tempDir      string
	sourcesDir   string
	referenceDir string
}

// Report lists what an install run produced.
type Report struct {
	Datasets  []shapefile.Source
	Reference []string
}

// NewInstaller creates an Installer from cfg.
func NewInstaller(f Fetcher, cfg *config.Config) *Installer {
	return &Installer{
		fetcher:      f,
		archives:     cfg.Fetch.Archives,
		reference:    cfg.Fetch.Reference,
		tempDir:      cfg.Fetch.TempDir,
		sourcesDir:   cfg.Sources.Dir,
		referenceDir: cfg.Reference.Dir,
	}
}

// Run fetches every archive and reference file concurrently.
func (in *Installer) Run(ctx context.Context) (*Report, error) {
	log := zap.L().With(zap.String("component", "fetch"))
	if err := os.MkdirAll(in.tempDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fetch: create temp dir")
	}

	datasets := make([][]shapefile.Source, len(in.archives))
	refs := make([]string, len(in.reference))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, a := range in.archives {
		g.Go(func() error {
			got, err := in.installArchive(gctx, i, a)
			if err != nil {
				return eris.Wrapf(err, "fetch: archive %s", a.URL)
			}
			datasets[i] = got
			return nil
		})
	}
	for i, u := range in.reference {
		g.Go(func() error {
			name, err := fileName(u)
			if err != nil {
				return err
			}
			dst := filepath.Join(in.referenceDir, name)
			n, err := in.fetcher.DownloadToFile(gctx, u, dst)
			if err != nil {
				return eris.Wrapf(err, "fetch: reference %s", u)
			}
			log.Info("reference file downloaded", zap.String("file", dst), zap.Int64("bytes", n))
			refs[i] = dst
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Reference: refs}
	for _, d := range datasets {
		report.Datasets = append(report.Datasets, d...)
	}
	log.Info("fetch finished",
		zap.Int("datasets", len(report.Datasets)),
		zap.Int("reference_files", len(report.Reference)),
	)
	return report, nil
}

func (in *Installer) installArchive(ctx context.Context, i int, a config.ArchiveConfig) ([]shapefile.Source, error) {
	name, err := fileName(a.URL)
	if err != nil {
		return nil, err
	}
	// Archives from different hosts may share a file name.
	name = strconv.Itoa(i) + "-" + name
	archive := filepath.Join(in.tempDir, name)
	n, err := in.fetcher.DownloadToFile(ctx, a.URL, archive)
	if err != nil {
		return nil, err
	}
	zap.L().Info("archive downloaded", zap.String("url", a.URL), zap.Int64("bytes", n))

	root := filepath.Join(in.tempDir, strings.TrimSuffix(name, filepath.Ext(name)))
	if err := os.RemoveAll(root); err != nil {
		return nil, eris.Wrap(err, "fetch: clean extract dir")
	}
	if _, err := ExtractZIP(archive, root); err != nil {
		return nil, err
	}

	sources := make([]shapefile.Source, 0, len(a.Datasets))
	for _, ds := range a.Datasets {
		shp, err := Locate(root, ds.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: dataset %s", ds.Name)
		}
		dst := shapefile.Source{Dir: in.sourcesDir, Name: ds.Name}
		if err := Install(shp, dst); err != nil {
			return nil, err
		}
		sources = append(sources, dst)
	}
	return sources, nil
}

// Locate returns the single .shp file under root matching the doublestar
// pattern.
func Locate(root, pattern string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: bad pattern %q", pattern)
	}
	var shps []string
	for _, m := range matches {
		if strings.EqualFold(path.Ext(m), ".shp") {
			shps = append(shps, m)
		}
	}
	switch len(shps) {
	case 0:
		return "", eris.Errorf("fetch: no shapefile matches %q", pattern)
	case 1:
		return filepath.Join(root, filepath.FromSlash(shps[0])), nil
	}
	return "", eris.Errorf("fetch: pattern %q is ambiguous: %s", pattern, strings.Join(shps, ", "))
}

// Install copies the dataset files next to shpPath into dst, renamed to the
// dataset name. Missing optional files are skipped.
func Install(shpPath string, dst shapefile.Source) error {
	if err := os.MkdirAll(dst.Dir, 0o755); err != nil {
		return eris.Wrap(err, "fetch: create sources dir")
	}
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for i, ext := range shapefile.Extensions {
		src, ok := sibling(base, ext)
		if !ok {
			if i < 3 {
				return eris.Errorf("fetch: %s has no %s file", shpPath, ext)
			}
			continue
		}
		if err := copyFile(src, dst.Path(ext)); err != nil {
			return err
		}
	}
	return nil
}

// sibling finds base+ext in either case.
func sibling(base, ext string) (string, bool) {
	for _, e := range []string{ext, strings.ToUpper(ext)} {
		if _, err := os.Stat(base + e); err == nil {
			return base + e, true
		}
	}
	return "", false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "fetch: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	if _, err := writeFile(in, dst); err != nil {
		return eris.Wrapf(err, "fetch: install %s", dst)
	}
	return nil
}

// fileName is the last path element of a download URL.
func fileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: parse %s", rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", eris.Errorf("fetch: no file name in %s", rawURL)
	}
	return name, nil
}
