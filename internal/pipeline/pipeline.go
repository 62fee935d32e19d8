package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
)

// CatalogLoader builds a fresh catalog from the data sources.
type CatalogLoader interface {
	Load(ctx context.Context) (*domain.Catalog, error)
}

// Store holds the catalog currently being served. Readers never lock; a refresh
// publishes a whole new catalog.
type Store struct {
	current atomic.Pointer[domain.Catalog]
}

// Current returns the served catalog, or nil before the first load.
func (s *Store) Current() *domain.Catalog {
	return s.current.Load()
}

// Swap publishes c and returns the catalog it replaced.
func (s *Store) Swap(c *domain.Catalog) *domain.Catalog {
	return s.current.Swap(c)
}

// Pipeline runs catalog loads and publishes the results to a Store.
type Pipeline struct {
	loader  CatalogLoader
	store   *Store
	logger  *slog.Logger
	metrics *observability.Metrics
	mu      sync.Mutex // serializes loads
}

// New creates a Pipeline.
func New(loader CatalogLoader, store *Store, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		loader:  loader,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Store returns the store the pipeline publishes to.
func (p *Pipeline) Store() *Store { return p.store }

// CheckReadiness returns nil once a catalog has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.store.Current() == nil {
		return errors.New("catalog has not been loaded yet")
	}
	return nil
}

// Load builds and publishes a catalog. On error the previously served catalog, if
// any, stays in place.
func (p *Pipeline) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	cat, err := p.loader.Load(ctx)
	p.metrics.CatalogLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.CatalogLoads.WithLabelValues("error").Inc()
		return err
	}
	p.metrics.CatalogLoads.WithLabelValues("success").Inc()

	prev := p.store.Swap(cat)
	p.recordCatalog(prev, cat)
	p.logger.Info("catalog published",
		"generation", cat.Generation,
		"datasets", cat.Names,
		"sites", len(cat.Sites),
		"skipped_files", len(cat.Skipped),
		"duration", time.Since(start),
	)
	return nil
}

// Reload is Load for refresh triggers: failures are logged rather than returned.
func (p *Pipeline) Reload(ctx context.Context) {
	if err := p.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("catalog reload failed, keeping previous catalog", "error", err)
	}
}

func (p *Pipeline) recordCatalog(prev, cat *domain.Catalog) {
	if prev != nil {
		for _, name := range prev.Names {
			if _, still := cat.Datasets[name]; !still {
				p.metrics.CatalogObservations.DeleteLabelValues(name)
			}
		}
	}
	for name, ds := range cat.Datasets {
		p.metrics.CatalogObservations.WithLabelValues(name).Set(float64(ds.Len()))
	}
	p.metrics.CatalogSkippedFiles.Set(float64(len(cat.Skipped)))
	p.metrics.CatalogLoadedAt.Set(float64(cat.LoadedAt.Unix()))
}
