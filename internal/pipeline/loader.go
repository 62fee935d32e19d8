package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/minesite-climate-service/internal/adapter/chart"
	"github.com/couchcryptid/minesite-climate-service/internal/adapter/csvfile"
	"github.com/couchcryptid/minesite-climate-service/internal/adapter/geojson"
	"github.com/couchcryptid/minesite-climate-service/internal/adapter/palette"
	"github.com/couchcryptid/minesite-climate-service/internal/config"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
)

// Sources lists everything a catalog is built from. Empty optional paths are skipped.
type Sources struct {
	Datasets     []config.DatasetSource
	SitesFile    string
	BoundaryFile string
	ColorsFile   string
	Region       string
}

// SourcesFromConfig picks the data paths out of the service config.
func SourcesFromConfig(cfg *config.Config) Sources {
	return Sources{
		Datasets:     cfg.Datasets,
		SitesFile:    cfg.SitesFile,
		BoundaryFile: cfg.BoundaryFile,
		ColorsFile:   cfg.ColorsFile,
		Region:       cfg.MapRegion,
	}
}

// Paths returns the files and directories a watcher should observe.
func (s Sources) Paths() []string {
	var out []string
	for _, d := range s.Datasets {
		out = append(out, d.Path)
	}
	for _, p := range []string{s.SitesFile, s.BoundaryFile, s.ColorsFile} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Loader reads source files and melts them into a Catalog.
type Loader struct {
	sources     Sources
	concurrency int
	geocoder    domain.Geocoder
	logger      *slog.Logger
}

// NewLoader creates a Loader. Pass a nil geocoder to keep site positions as read.
func NewLoader(sources Sources, concurrency int, geocoder domain.Geocoder, logger *slog.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Loader{
		sources:     sources,
		concurrency: concurrency,
		geocoder:    geocoder,
		logger:      logger,
	}
}

// Load builds a new Catalog. Any missing file, unparsable table, bad decade label or
// missing or undrawable color aborts the load; files whose names carry no provenance are skipped
// and listed in Catalog.Skipped.
func (l *Loader) Load(ctx context.Context) (*domain.Catalog, error) {
	colors := domain.DefaultColors()
	if l.sources.ColorsFile != "" {
		override, err := palette.ReadColors(l.sources.ColorsFile)
		if err != nil {
			return nil, err
		}
		colors = colors.Merge(override)
	}
	if err := chart.ValidateColors(colors); err != nil {
		return nil, fmt.Errorf("palette %s: %w", l.sources.ColorsFile, err)
	}

	cat := &domain.Catalog{
		Datasets: make(map[string]*domain.Dataset, len(l.sources.Datasets)),
		Colors:   colors,
	}

	for _, src := range l.sources.Datasets {
		ds, skipped, err := l.LoadDataset(ctx, src)
		if err != nil {
			return nil, err
		}
		if err := colors.Validate(ds); err != nil {
			return nil, err
		}
		cat.Names = append(cat.Names, src.Name)
		cat.Datasets[src.Name] = ds
		cat.Skipped = append(cat.Skipped, skipped...)
		l.logger.Info("dataset loaded",
			"dataset", src.Name,
			"observations", ds.Len(),
			"has_month", ds.HasMonth(),
			"skipped_files", len(skipped),
		)
	}

	if l.sources.SitesFile != "" {
		sites, err := csvfile.ReadSites(l.sources.SitesFile)
		if err != nil {
			return nil, err
		}
		cat.Sites = domain.EnrichSites(ctx, sites, l.geocoder, l.sources.Region, l.logger)
	}

	if l.sources.BoundaryFile != "" {
		region, err := geojson.ReadRegion(l.sources.BoundaryFile)
		if err != nil {
			return nil, err
		}
		cat.Region = region
	}

	cat.Generation = uuid.NewString()
	cat.LoadedAt = domain.Now()
	return cat, nil
}

// fileResult is what one worker produces for one source file.
type fileResult struct {
	obs     []domain.Observation
	skipped *domain.SkippedFile
}

// LoadDataset reads every CSV of one source. Files are read in parallel; results are
// concatenated in sorted filename order so the catalog is deterministic.
func (l *Loader) LoadDataset(ctx context.Context, src config.DatasetSource) (*domain.Dataset, []domain.SkippedFile, error) {
	paths, err := listCSV(src.Path)
	if err != nil {
		return nil, nil, err
	}

	results := make([]fileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := readFile(path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("load dataset %q: %w", src.Name, err)
	}

	var (
		parts   [][]domain.Observation
		skipped []domain.SkippedFile
	)
	for _, r := range results {
		if r.skipped != nil {
			l.logger.Warn("source file skipped", "dataset", src.Name, "path", r.skipped.Path, "reason", r.skipped.Reason)
			skipped = append(skipped, *r.skipped)
			continue
		}
		parts = append(parts, r.obs)
	}
	if len(parts) == 0 {
		return nil, skipped, fmt.Errorf("%w: dataset %q has no usable files in %s", domain.ErrDataUnavailable, src.Name, src.Path)
	}

	return domain.NewDataset(src.Name, domain.Concat(parts...)), skipped, nil
}

// readFile loads one table. Melted files are read as is; wide files need provenance
// from their name.
func readFile(path string) (fileResult, error) {
	t, err := csvfile.ReadTable(path)
	if err != nil {
		return fileResult{}, err
	}

	if domain.IsLongTable(t.Columns) {
		obs, err := domain.FromLongTable(t)
		if err != nil {
			return fileResult{}, err
		}
		return fileResult{obs: obs}, nil
	}

	prov, err := domain.ParseProvenance(path)
	if errors.Is(err, domain.ErrMalformedFilename) {
		return fileResult{skipped: &domain.SkippedFile{Path: path, Reason: err.Error()}}, nil
	}
	if err != nil {
		return fileResult{}, err
	}

	obs, err := domain.Melt(t, &prov)
	if err != nil {
		return fileResult{}, err
	}
	return fileResult{obs: obs}, nil
}

// listCSV expands a dataset path: a file stands for itself, a directory for the
// *.csv files directly inside it.
func listCSV(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsCSV(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// IsCSV reports whether name looks like a data table, ignoring editor temp files.
func IsCSV(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".csv") && !strings.HasPrefix(base, ".") && !strings.HasPrefix(base, "~")
}
