package pipeline_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/minesite-climate-service/internal/domain"
	"github.com/couchcryptid/minesite-climate-service/internal/observability"
	"github.com/couchcryptid/minesite-climate-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockLoader struct {
	catalogs []*domain.Catalog
	errs     []error
	calls    atomic.Int64
}

func (m *mockLoader) Load(_ context.Context) (*domain.Catalog, error) {
	i := int(m.calls.Add(1) - 1)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return m.catalogs[i], nil
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func testCatalog(generation string, datasets ...string) *domain.Catalog {
	c := &domain.Catalog{
		Generation: generation,
		LoadedAt:   time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC),
		Datasets:   make(map[string]*domain.Dataset),
	}
	for _, name := range datasets {
		c.Names = append(c.Names, name)
		c.Datasets[name] = domain.NewDataset(name, []domain.Observation{{Year: 1990, Minesite: "Ekati_Mine"}})
	}
	return c
}

// --- tests ---

func TestPipeline_LoadPublishes(t *testing.T) {
	cat := testCatalog("gen-1", "annual")
	metrics := newTestMetrics()
	p := pipeline.New(&mockLoader{catalogs: []*domain.Catalog{cat}}, &pipeline.Store{}, discardLogger(), metrics)

	require.Error(t, p.CheckReadiness(context.Background()))

	require.NoError(t, p.Load(context.Background()))

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Same(t, cat, p.Store().Current())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CatalogLoads.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CatalogObservations.WithLabelValues("annual")))
	assert.Equal(t, float64(cat.LoadedAt.Unix()), testutil.ToFloat64(metrics.CatalogLoadedAt))
}

func TestPipeline_LoadErrorNotReady(t *testing.T) {
	metrics := newTestMetrics()
	loader := &mockLoader{errs: []error{domain.ErrDataUnavailable}}
	p := pipeline.New(loader, &pipeline.Store{}, discardLogger(), metrics)

	err := p.Load(context.Background())

	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CatalogLoads.WithLabelValues("error")))
}

func TestPipeline_ReloadFailureKeepsPrevious(t *testing.T) {
	first := testCatalog("gen-1", "annual")
	loader := &mockLoader{
		catalogs: []*domain.Catalog{first, nil},
		errs:     []error{nil, errors.New("disk on fire")},
	}
	p := pipeline.New(loader, &pipeline.Store{}, discardLogger(), newTestMetrics())

	require.NoError(t, p.Load(context.Background()))
	p.Reload(context.Background())

	assert.Same(t, first, p.Store().Current())
	assert.Equal(t, int64(2), loader.calls.Load())
}

func TestPipeline_ReloadSwapsCatalog(t *testing.T) {
	first := testCatalog("gen-1", "annual", "monthly")
	second := testCatalog("gen-2", "annual")
	metrics := newTestMetrics()
	p := pipeline.New(&mockLoader{catalogs: []*domain.Catalog{first, second}}, &pipeline.Store{}, discardLogger(), metrics)

	require.NoError(t, p.Load(context.Background()))
	held := p.Store().Current()
	p.Reload(context.Background())

	assert.Equal(t, "gen-2", p.Store().Current().Generation)
	assert.Equal(t, "gen-1", held.Generation, "readers holding the old catalog keep a consistent view")
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.CatalogObservations))
}
