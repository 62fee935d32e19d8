// Package dashboard answers the UI's selection queries against the catalog currently
// being served.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/minesite-climate-service/internal/cache"
	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
)

// ErrNotLoaded is returned while no catalog has been published yet.
var ErrNotLoaded = errors.New("catalog not loaded")

// DefaultGroup splits series by climate model run, as the annual chart does. Group
// adds minesite to it when more than one minesite is in scope.
const DefaultGroup = domain.ByModel | domain.ByScenario

// CatalogSource yields the catalog to answer from.
type CatalogSource interface {
	Current() *domain.Catalog
}

// Query is a selection as submitted by the UI. Nil sets mean "all"; a nil year bound
// defaults to the dataset's range.
type Query struct {
	Minesites []string
	Scenarios []string
	Models    []string
	YearMin   *int
	YearMax   *int
	Month     int
	Group     domain.GroupKey
}

// SeriesResult is the chart payload for one query.
type SeriesResult struct {
	Dataset    string          `json:"dataset"`
	Generation string          `json:"generation"`
	Group      string          `json:"group"`
	Monthly    bool            `json:"monthly"`
	Series     []domain.Series `json:"series"`
}

// MapConfig carries what the UI needs to draw the site map.
type MapConfig struct {
	Token       string  `json:"token,omitempty"`
	Region      string  `json:"region"`
	CenterLat   float64 `json:"center_lat"`
	CenterLon   float64 `json:"center_lon"`
	HasBoundary bool    `json:"has_boundary"`
	Sites       int     `json:"sites"`
}

// Options configures a Service.
type Options struct {
	CacheSize   int
	MapboxToken string
	Region      string
}

// Service is safe for concurrent use.
type Service struct {
	source  CatalogSource
	memo    *cache.LRU[string, []domain.Series]
	opts    Options
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates a Service reading from source.
func NewService(source CatalogSource, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		source:  source,
		memo:    cache.New[string, []domain.Series](opts.CacheSize),
		opts:    opts,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Service) catalog() (*domain.Catalog, error) {
	cat := s.source.Current()
	if cat == nil {
		return nil, ErrNotLoaded
	}
	return cat, nil
}

// Datasets returns the facets of every dataset in catalog order.
func (s *Service) Datasets() ([]domain.Facets, error) {
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Facets, 0, len(cat.Names))
	for _, name := range cat.Names {
		out = append(out, cat.Datasets[name].Facets())
	}
	return out, nil
}

// Facets returns the selectable values of one dataset.
func (s *Service) Facets(name string) (domain.Facets, error) {
	cat, err := s.catalog()
	if err != nil {
		return domain.Facets{}, err
	}
	ds, err := cat.Dataset(name)
	if err != nil {
		return domain.Facets{}, err
	}
	return ds.Facets(), nil
}

// Series filters, groups and colors the named dataset. Results are memoized per
// catalog generation; the returned series are shared and must not be modified.
func (s *Service) Series(ctx context.Context, name string, q Query) (SeriesResult, error) {
	start := time.Now()
	res, err := s.series(ctx, name, q)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.QueryRequests.WithLabelValues(name, outcome).Inc()
	if err == nil {
		s.metrics.QueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (s *Service) series(ctx context.Context, name string, q Query) (SeriesResult, error) {
	if err := ctx.Err(); err != nil {
		return SeriesResult{}, err
	}
	cat, err := s.catalog()
	if err != nil {
		return SeriesResult{}, err
	}
	ds, err := cat.Dataset(name)
	if err != nil {
		return SeriesResult{}, err
	}

	p := q.Predicate(ds)
	keys := Group(ds, q)
	res := SeriesResult{
		Dataset:    name,
		Generation: cat.Generation,
		Group:      keys.String(),
		Monthly:    ds.HasMonth(),
	}

	key := cat.Generation + "|" + name + "|" + keys.String() + "|" + p.CacheKey()
	if cached, ok := s.memo.Get(key); ok {
		s.metrics.QueryCache.WithLabelValues("hit").Inc()
		res.Series = cached
		return res, nil
	}
	s.metrics.QueryCache.WithLabelValues("miss").Inc()

	rows := domain.Filter(ds, p)
	series := domain.GroupSeries(rows, p, keys, ds.HasMonth())
	if err := cat.Colors.AssignColors(series, keys); err != nil {
		return SeriesResult{}, fmt.Errorf("color series: %w", err)
	}

	var points int
	for _, sr := range series {
		points += sr.Len()
	}
	s.metrics.SeriesPoints.Observe(float64(points))
	s.logger.Debug("series computed",
		"dataset", name,
		"group", res.Group,
		"rows", len(rows),
		"series", len(series),
		"points", points,
	)

	s.memo.Put(key, series)
	res.Series = series
	return res, nil
}

// Group resolves the grouping keys q asks for against ds. Without an explicit
// grouping a line never mixes minesites, so minesite joins the default unless the
// selection names exactly one. Model and scenario are dropped when ds has none, and
// minesite is added whenever the remaining keys cannot color every row.
func Group(ds *domain.Dataset, q Query) domain.GroupKey {
	f := ds.Facets()
	keys := q.Group
	if keys == 0 {
		keys = DefaultGroup
		if !singleMinesite(q.Minesites, f.Minesites) {
			keys |= domain.ByMinesite
		}
	}
	if len(f.Models) == 0 {
		keys &^= domain.ByModel
	}
	if len(f.Scenarios) == 0 {
		keys &^= domain.ByScenario
	}
	if !ds.HasMonth() {
		keys &^= domain.ByMonth
	}
	if !keys.Has(domain.ByMinesite) && (!keys.Has(domain.ByModel|domain.ByScenario) || ds.HasUnattributed()) {
		keys |= domain.ByMinesite
	}
	return keys
}

func singleMinesite(selected, all []string) bool {
	if selected != nil {
		return len(selected) == 1
	}
	return len(all) == 1
}

// Predicate resolves q against ds, filling unset year bounds from its facets.
func (q Query) Predicate(ds *domain.Dataset) domain.Predicate {
	p := domain.Everything(ds)
	p.Minesites = q.Minesites
	p.Scenarios = q.Scenarios
	p.Models = q.Models
	p.Month = q.Month
	if q.YearMin != nil {
		p.YearMin = *q.YearMin
	}
	if q.YearMax != nil {
		p.YearMax = *q.YearMax
	}
	return p
}

// Sites returns the map markers of the current catalog.
func (s *Service) Sites() ([]domain.Site, error) {
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}
	return cat.Sites, nil
}

// MapConfig describes the site map.
func (s *Service) MapConfig() (MapConfig, error) {
	cat, err := s.catalog()
	if err != nil {
		return MapConfig{}, err
	}
	lat, lon := cat.MapCenter()
	return MapConfig{
		Token:       s.opts.MapboxToken,
		Region:      s.opts.Region,
		CenterLat:   lat,
		CenterLon:   lon,
		HasBoundary: cat.Region != nil,
		Sites:       len(cat.Sites),
	}, nil
}

// Boundary returns the region GeoJSON, or nil when none was configured.
func (s *Service) Boundary() ([]byte, error) {
	cat, err := s.catalog()
	if err != nil {
		return nil, err
	}
	if cat.Region == nil {
		return nil, nil
	}
	return cat.Region.GeoJSON, nil
}
